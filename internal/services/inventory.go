package services

import (
	"context"
	"errors"

	"github.com/sparkride/apiserver/types"
)

const defaultBikeDescription = "No description available"
const defaultPricePerDay = 5000

// ErrInvalidRating means a review rating is outside [1, 5].
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// BikeRepository defines persistence operations for bikes and reviews.
type BikeRepository interface {
	List(ctx context.Context) ([]types.Bike, error)
	ListByStation(ctx context.Context, stationID int) ([]types.Bike, error)
	Get(ctx context.Context, id int) (types.Bike, error)
	Create(ctx context.Context, bike types.Bike) (types.Bike, error)
	Update(ctx context.Context, bike types.Bike) (types.Bike, error)
	Delete(ctx context.Context, id int) error
	TryAcquireUnit(ctx context.Context, id int) (bool, error)
	ReleaseUnit(ctx context.Context, id int) error
	AddReview(ctx context.Context, review types.Review) (types.Review, error)
	ListReviewsForBikes(ctx context.Context, bikeIDs []int) ([]types.Review, error)
}

// StationRepository defines persistence operations for stations.
type StationRepository interface {
	List(ctx context.Context) ([]types.Station, error)
	Get(ctx context.Context, id int) (types.Station, error)
	Create(ctx context.Context, station types.Station) (types.Station, error)
	Update(ctx context.Context, station types.Station) (types.Station, error)
	Delete(ctx context.Context, id int) error
}

// BikeUpdate carries a partial field set for a bike edit. Nil fields are
// left untouched.
type BikeUpdate struct {
	Name          *string
	Description   *string
	PricePerDay   *int64
	TotalQuantity *int
	StationID     *int
	Status        *string
	Images        []string
}

// InventoryService encapsulates bike and station use-cases.
type InventoryService struct {
	bikes    BikeRepository
	stations StationRepository
}

func NewInventoryService(bikes BikeRepository, stations StationRepository) *InventoryService {
	return &InventoryService{bikes: bikes, stations: stations}
}

// CreateBike stores a new bike pool. Available quantity is always
// initialized to the total, whatever the client sent.
func (s *InventoryService) CreateBike(ctx context.Context, bike types.Bike) (types.Bike, error) {
	if bike.Description == "" {
		bike.Description = defaultBikeDescription
	}
	if bike.PricePerDay == 0 {
		bike.PricePerDay = defaultPricePerDay
	}
	if bike.Status == "" {
		bike.Status = types.BikeAvailable
	}
	bike.AvailableQuantity = bike.TotalQuantity
	bike.AverageRating = 0
	return s.bikes.Create(ctx, bike)
}

// UpdateBike applies a partial edit. If the edit leaves availability above
// the total it is clamped down rather than rejected.
func (s *InventoryService) UpdateBike(ctx context.Context, id int, update BikeUpdate) (types.Bike, error) {
	bike, err := s.bikes.Get(ctx, id)
	if err != nil {
		return types.Bike{}, err
	}

	if update.Name != nil {
		bike.Name = *update.Name
	}
	if update.Description != nil {
		bike.Description = *update.Description
	}
	if update.PricePerDay != nil {
		bike.PricePerDay = *update.PricePerDay
	}
	if update.TotalQuantity != nil {
		bike.TotalQuantity = *update.TotalQuantity
	}
	if update.StationID != nil {
		bike.StationID = update.StationID
	}
	if update.Status != nil {
		bike.Status = *update.Status
	}
	if update.Images != nil {
		bike.Images = update.Images
	}

	if bike.AvailableQuantity > bike.TotalQuantity {
		bike.AvailableQuantity = bike.TotalQuantity
	}

	updated, err := s.bikes.Update(ctx, bike)
	if err != nil {
		return types.Bike{}, err
	}
	return s.attachReviews(ctx, updated)
}

func (s *InventoryService) GetBike(ctx context.Context, id int) (types.Bike, error) {
	bike, err := s.bikes.Get(ctx, id)
	if err != nil {
		return types.Bike{}, err
	}
	return s.attachReviews(ctx, bike)
}

func (s *InventoryService) ListBikes(ctx context.Context) ([]types.Bike, error) {
	bikes, err := s.bikes.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.attachReviewsAll(ctx, bikes)
}

// DeleteBike is unconditional; reservations referencing the bike keep a
// dangling (nulled) reference.
func (s *InventoryService) DeleteBike(ctx context.Context, id int) error {
	return s.bikes.Delete(ctx, id)
}

// AddReview appends a review to a bike; the bike's average rating is
// recomputed as the plain mean of all its ratings.
func (s *InventoryService) AddReview(ctx context.Context, review types.Review) (types.Review, error) {
	if review.Rating < 1 || review.Rating > 5 {
		return types.Review{}, ErrInvalidRating
	}
	return s.bikes.AddReview(ctx, review)
}

func (s *InventoryService) CreateStation(ctx context.Context, station types.Station) (types.Station, error) {
	return s.stations.Create(ctx, station)
}

func (s *InventoryService) UpdateStation(ctx context.Context, station types.Station) (types.Station, error) {
	return s.stations.Update(ctx, station)
}

// GetStation returns a station with its bike list derived from the bikes'
// station references.
func (s *InventoryService) GetStation(ctx context.Context, id int) (types.Station, error) {
	station, err := s.stations.Get(ctx, id)
	if err != nil {
		return types.Station{}, err
	}
	bikes, err := s.bikes.ListByStation(ctx, id)
	if err != nil {
		return types.Station{}, err
	}
	station.Bikes = bikes
	return station, nil
}

func (s *InventoryService) ListStations(ctx context.Context) ([]types.Station, error) {
	stations, err := s.stations.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stations {
		bikes, err := s.bikes.ListByStation(ctx, stations[i].ID)
		if err != nil {
			return nil, err
		}
		stations[i].Bikes = bikes
	}
	return stations, nil
}

// DeleteStation is unconditional; dependent bikes keep a nulled station
// reference.
func (s *InventoryService) DeleteStation(ctx context.Context, id int) error {
	return s.stations.Delete(ctx, id)
}

func (s *InventoryService) attachReviews(ctx context.Context, bike types.Bike) (types.Bike, error) {
	bikes, err := s.attachReviewsAll(ctx, []types.Bike{bike})
	if err != nil {
		return types.Bike{}, err
	}
	return bikes[0], nil
}

func (s *InventoryService) attachReviewsAll(ctx context.Context, bikes []types.Bike) ([]types.Bike, error) {
	if len(bikes) == 0 {
		return bikes, nil
	}

	ids := make([]int, 0, len(bikes))
	for _, bike := range bikes {
		ids = append(ids, bike.ID)
	}

	reviews, err := s.bikes.ListReviewsForBikes(ctx, ids)
	if err != nil {
		return nil, err
	}

	byBike := make(map[int][]types.Review, len(bikes))
	for _, review := range reviews {
		byBike[review.BikeID] = append(byBike[review.BikeID], review)
	}
	for i := range bikes {
		bikes[i].Reviews = byBike[bikes[i].ID]
	}
	return bikes, nil
}
