package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

type fakeBikeRepo struct {
	nextID  int
	bikes   map[int]types.Bike
	reviews []types.Review
}

func newFakeBikeRepo() *fakeBikeRepo {
	return &fakeBikeRepo{nextID: 1, bikes: make(map[int]types.Bike)}
}

func (f *fakeBikeRepo) List(ctx context.Context) ([]types.Bike, error) {
	out := make([]types.Bike, 0, len(f.bikes))
	for _, bike := range f.bikes {
		out = append(out, bike)
	}
	return out, nil
}

func (f *fakeBikeRepo) ListByStation(ctx context.Context, stationID int) ([]types.Bike, error) {
	var out []types.Bike
	for _, bike := range f.bikes {
		if bike.StationID != nil && *bike.StationID == stationID {
			out = append(out, bike)
		}
	}
	return out, nil
}

func (f *fakeBikeRepo) Get(ctx context.Context, id int) (types.Bike, error) {
	bike, ok := f.bikes[id]
	if !ok {
		return types.Bike{}, store.ErrNotFound
	}
	return bike, nil
}

func (f *fakeBikeRepo) Create(ctx context.Context, bike types.Bike) (types.Bike, error) {
	bike.ID = f.nextID
	f.nextID++
	f.bikes[bike.ID] = bike
	return bike, nil
}

func (f *fakeBikeRepo) Update(ctx context.Context, bike types.Bike) (types.Bike, error) {
	if _, ok := f.bikes[bike.ID]; !ok {
		return types.Bike{}, store.ErrNotFound
	}
	f.bikes[bike.ID] = bike
	return bike, nil
}

func (f *fakeBikeRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.bikes[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.bikes, id)
	return nil
}

func (f *fakeBikeRepo) TryAcquireUnit(ctx context.Context, id int) (bool, error) {
	bike, ok := f.bikes[id]
	if !ok || bike.AvailableQuantity <= 0 {
		return false, nil
	}
	bike.AvailableQuantity--
	f.bikes[id] = bike
	return true, nil
}

func (f *fakeBikeRepo) ReleaseUnit(ctx context.Context, id int) error {
	bike, ok := f.bikes[id]
	if !ok {
		return store.ErrNotFound
	}
	if bike.AvailableQuantity < bike.TotalQuantity {
		bike.AvailableQuantity++
		f.bikes[id] = bike
	}
	return nil
}

func (f *fakeBikeRepo) AddReview(ctx context.Context, review types.Review) (types.Review, error) {
	bike, ok := f.bikes[review.BikeID]
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	review.ID = len(f.reviews) + 1
	f.reviews = append(f.reviews, review)

	var sum, count int
	for _, r := range f.reviews {
		if r.BikeID == review.BikeID {
			sum += r.Rating
			count++
		}
	}
	bike.AverageRating = float64(sum) / float64(count)
	f.bikes[review.BikeID] = bike
	return review, nil
}

func (f *fakeBikeRepo) ListReviewsForBikes(ctx context.Context, bikeIDs []int) ([]types.Review, error) {
	wanted := make(map[int]bool, len(bikeIDs))
	for _, id := range bikeIDs {
		wanted[id] = true
	}
	var out []types.Review
	for _, review := range f.reviews {
		if wanted[review.BikeID] {
			out = append(out, review)
		}
	}
	return out, nil
}

type fakeStationRepo struct {
	nextID   int
	stations map[int]types.Station
}

func newFakeStationRepo() *fakeStationRepo {
	return &fakeStationRepo{nextID: 1, stations: make(map[int]types.Station)}
}

func (f *fakeStationRepo) List(ctx context.Context) ([]types.Station, error) {
	out := make([]types.Station, 0, len(f.stations))
	for _, station := range f.stations {
		out = append(out, station)
	}
	return out, nil
}

func (f *fakeStationRepo) Get(ctx context.Context, id int) (types.Station, error) {
	station, ok := f.stations[id]
	if !ok {
		return types.Station{}, store.ErrNotFound
	}
	return station, nil
}

func (f *fakeStationRepo) Create(ctx context.Context, station types.Station) (types.Station, error) {
	station.ID = f.nextID
	f.nextID++
	f.stations[station.ID] = station
	return station, nil
}

func (f *fakeStationRepo) Update(ctx context.Context, station types.Station) (types.Station, error) {
	if _, ok := f.stations[station.ID]; !ok {
		return types.Station{}, store.ErrNotFound
	}
	f.stations[station.ID] = station
	return station, nil
}

func (f *fakeStationRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.stations[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.stations, id)
	return nil
}

func TestCreateBikeInitializesAvailabilityToTotal(t *testing.T) {
	svc := NewInventoryService(newFakeBikeRepo(), newFakeStationRepo())

	created, err := svc.CreateBike(context.Background(), types.Bike{
		Name:              "City Cruiser",
		TotalQuantity:     5,
		AvailableQuantity: 99,
	})
	if err != nil {
		t.Fatalf("create bike: %v", err)
	}
	if created.AvailableQuantity != 5 {
		t.Fatalf("expected available 5, got %d", created.AvailableQuantity)
	}
	if created.Description != defaultBikeDescription {
		t.Fatalf("expected default description, got %q", created.Description)
	}
	if created.PricePerDay != defaultPricePerDay {
		t.Fatalf("expected default price, got %d", created.PricePerDay)
	}
	if created.Status != types.BikeAvailable {
		t.Fatalf("expected available status, got %q", created.Status)
	}
}

func TestUpdateBikeClampsAvailabilityToTotal(t *testing.T) {
	bikes := newFakeBikeRepo()
	svc := NewInventoryService(bikes, newFakeStationRepo())

	created, err := svc.CreateBike(context.Background(), types.Bike{
		Name:          "City Cruiser",
		TotalQuantity: 5,
	})
	if err != nil {
		t.Fatalf("create bike: %v", err)
	}

	newTotal := 2
	updated, err := svc.UpdateBike(context.Background(), created.ID, BikeUpdate{
		TotalQuantity: &newTotal,
	})
	if err != nil {
		t.Fatalf("update bike: %v", err)
	}
	if updated.AvailableQuantity != 2 {
		t.Fatalf("expected available clamped to 2, got %d", updated.AvailableQuantity)
	}
}

func TestUpdateBikeLeavesUnsetFieldsAlone(t *testing.T) {
	bikes := newFakeBikeRepo()
	svc := NewInventoryService(bikes, newFakeStationRepo())

	created, err := svc.CreateBike(context.Background(), types.Bike{
		Name:          "City Cruiser",
		Description:   "A sturdy city bike",
		PricePerDay:   7000,
		TotalQuantity: 3,
	})
	if err != nil {
		t.Fatalf("create bike: %v", err)
	}

	name := "Mountain King"
	updated, err := svc.UpdateBike(context.Background(), created.ID, BikeUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update bike: %v", err)
	}
	if updated.Name != "Mountain King" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}
	if updated.Description != "A sturdy city bike" {
		t.Fatalf("description changed: %q", updated.Description)
	}
	if updated.PricePerDay != 7000 {
		t.Fatalf("price changed: %d", updated.PricePerDay)
	}
}

func TestAddReviewRejectsOutOfRangeRating(t *testing.T) {
	bikes := newFakeBikeRepo()
	svc := NewInventoryService(bikes, newFakeStationRepo())

	created, err := svc.CreateBike(context.Background(), types.Bike{Name: "City Cruiser", TotalQuantity: 1})
	if err != nil {
		t.Fatalf("create bike: %v", err)
	}

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.AddReview(context.Background(), types.Review{BikeID: created.ID, UserID: 7, Rating: rating})
		if !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
}

func TestAddReviewRecomputesAverage(t *testing.T) {
	bikes := newFakeBikeRepo()
	svc := NewInventoryService(bikes, newFakeStationRepo())

	created, err := svc.CreateBike(context.Background(), types.Bike{Name: "City Cruiser", TotalQuantity: 1})
	if err != nil {
		t.Fatalf("create bike: %v", err)
	}

	for _, rating := range []int{5, 4, 3} {
		if _, err := svc.AddReview(context.Background(), types.Review{BikeID: created.ID, UserID: 7, Rating: rating}); err != nil {
			t.Fatalf("add review: %v", err)
		}
	}

	bike, err := svc.GetBike(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get bike: %v", err)
	}
	if bike.AverageRating != 4 {
		t.Fatalf("expected average 4, got %v", bike.AverageRating)
	}
	if len(bike.Reviews) != 3 {
		t.Fatalf("expected 3 reviews attached, got %d", len(bike.Reviews))
	}
}

func TestGetStationDerivesBikeList(t *testing.T) {
	bikes := newFakeBikeRepo()
	stations := newFakeStationRepo()
	svc := NewInventoryService(bikes, stations)

	station, err := svc.CreateStation(context.Background(), types.Station{Name: "Central", Address: "1 Main St"})
	if err != nil {
		t.Fatalf("create station: %v", err)
	}

	for _, name := range []string{"City Cruiser", "Mountain King"} {
		if _, err := svc.CreateBike(context.Background(), types.Bike{
			Name:          name,
			TotalQuantity: 1,
			StationID:     &station.ID,
		}); err != nil {
			t.Fatalf("create bike: %v", err)
		}
	}
	if _, err := svc.CreateBike(context.Background(), types.Bike{Name: "Loose Bike", TotalQuantity: 1}); err != nil {
		t.Fatalf("create bike: %v", err)
	}

	fetched, err := svc.GetStation(context.Background(), station.ID)
	if err != nil {
		t.Fatalf("get station: %v", err)
	}
	if len(fetched.Bikes) != 2 {
		t.Fatalf("expected 2 bikes at station, got %d", len(fetched.Bikes))
	}
}
