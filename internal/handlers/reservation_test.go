package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sparkride/apiserver/internal/services"
	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

type stubReservationRepo struct {
	nextID       int
	reservations map[int]types.Reservation
}

func newStubReservationRepo() *stubReservationRepo {
	return &stubReservationRepo{nextID: 1, reservations: make(map[int]types.Reservation)}
}

func (s *stubReservationRepo) Get(ctx context.Context, id int) (types.Reservation, error) {
	reservation, ok := s.reservations[id]
	if !ok {
		return types.Reservation{}, store.ErrNotFound
	}
	return reservation, nil
}

func (s *stubReservationRepo) List(ctx context.Context) ([]types.Reservation, error) {
	out := make([]types.Reservation, 0, len(s.reservations))
	for _, reservation := range s.reservations {
		out = append(out, reservation)
	}
	return out, nil
}

func (s *stubReservationRepo) ListByUser(ctx context.Context, userID int) ([]types.Reservation, error) {
	var out []types.Reservation
	for _, reservation := range s.reservations {
		if reservation.UserID == userID {
			out = append(out, reservation)
		}
	}
	return out, nil
}

func (s *stubReservationRepo) Create(ctx context.Context, reservation types.Reservation) (types.Reservation, error) {
	reservation.ID = s.nextID
	s.nextID++
	s.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (s *stubReservationRepo) MarkReturned(ctx context.Context, id int, endDate time.Time, totalCost *int64) (bool, error) {
	reservation, ok := s.reservations[id]
	if !ok || reservation.Status != types.ReservationReserved {
		return false, nil
	}
	reservation.Status = types.ReservationReturned
	reservation.EndDate = &endDate
	if totalCost != nil {
		reservation.TotalCost = totalCost
	}
	s.reservations[id] = reservation
	return true, nil
}

func (s *stubReservationRepo) SetStatus(ctx context.Context, id int, status string) error {
	reservation, ok := s.reservations[id]
	if !ok {
		return store.ErrNotFound
	}
	reservation.Status = status
	s.reservations[id] = reservation
	return nil
}

func (s *stubReservationRepo) Delete(ctx context.Context, id int) error {
	if _, ok := s.reservations[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

func (s *stubReservationRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	return false, nil
}

func (s *stubReservationRepo) ListWithoutCode(ctx context.Context) ([]int, error) {
	return nil, nil
}

func (s *stubReservationRepo) SetCode(ctx context.Context, id int, code string) error {
	return nil
}

type stubBikes struct {
	bikes map[int]*types.Bike
}

func newStubBikes(bikes ...types.Bike) *stubBikes {
	s := &stubBikes{bikes: make(map[int]*types.Bike)}
	for i := range bikes {
		bike := bikes[i]
		s.bikes[bike.ID] = &bike
	}
	return s
}

func (s *stubBikes) Get(ctx context.Context, id int) (types.Bike, error) {
	bike, ok := s.bikes[id]
	if !ok {
		return types.Bike{}, store.ErrNotFound
	}
	return *bike, nil
}

func (s *stubBikes) TryAcquireUnit(ctx context.Context, id int) (bool, error) {
	bike, ok := s.bikes[id]
	if !ok || bike.AvailableQuantity <= 0 {
		return false, nil
	}
	bike.AvailableQuantity--
	return true, nil
}

func (s *stubBikes) ReleaseUnit(ctx context.Context, id int) error {
	bike, ok := s.bikes[id]
	if !ok {
		return store.ErrNotFound
	}
	if bike.AvailableQuantity < bike.TotalQuantity {
		bike.AvailableQuantity++
	}
	return nil
}

type reservationTestEnv struct {
	router   *chi.Mux
	users    *fakeUserRepo
	userID   int
	adminID  int
	tokenFor func(t *testing.T, userID int) string
}

func newReservationTestEnv(t *testing.T, bikes *stubBikes) reservationTestEnv {
	t.Helper()

	users := newFakeUserRepo()
	user, err := users.Create(context.Background(), types.User{Name: "Rider", Email: "rider@example.com", Role: types.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	admin, err := users.Create(context.Background(), types.User{Name: "Admin", Email: "admin@example.com", Role: types.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	userService := services.NewUserService(users)
	reservationService := services.NewReservationService(newStubReservationRepo(), bikes, nil)

	authMiddleware := RequireAuth(testJWTSecret)
	adminMiddleware := RequireAdmin(userService)

	router := chi.NewRouter()
	router.Route("/reservations", func(r chi.Router) {
		ReservationRouter(r, reservationService, userService, authMiddleware, adminMiddleware)
	})

	return reservationTestEnv{
		router:  router,
		users:   users,
		userID:  user.ID,
		adminID: admin.ID,
		tokenFor: func(t *testing.T, userID int) string {
			t.Helper()
			token, err := issueToken(userID, []byte(testJWTSecret), defaultTokenTTL)
			if err != nil {
				t.Fatalf("issue token: %v", err)
			}
			return token
		},
	}
}

func (env reservationTestEnv) rent(t *testing.T, token string, bikeID int, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	rec := postJSON(t, authedRouter{env.router, token}, fmt.Sprintf("/reservations/rent/%d", bikeID), payload)
	return rec
}

// authedRouter injects a bearer token before delegating to the router.
type authedRouter struct {
	handler http.Handler
	token   string
}

func (a authedRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.token != "" {
		r.Header.Set("Authorization", "Bearer "+a.token)
	}
	a.handler.ServeHTTP(w, r)
}

func TestRentRequiresAuth(t *testing.T) {
	env := newReservationTestEnv(t, newStubBikes(types.Bike{ID: 1, PricePerDay: 5000, TotalQuantity: 1, AvailableQuantity: 1, Status: types.BikeAvailable}))

	rec := env.rent(t, "", 1, map[string]string{
		"start_date": "2026-08-01",
		"end_date":   "2026-08-03",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRentValidationFailures(t *testing.T) {
	env := newReservationTestEnv(t, newStubBikes(types.Bike{ID: 1, PricePerDay: 5000, TotalQuantity: 1, AvailableQuantity: 1, Status: types.BikeAvailable}))
	token := env.tokenFor(t, env.userID)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"missing end date", map[string]string{"start_date": "2026-08-01"}},
		{"garbage date", map[string]string{"start_date": "not-a-date", "end_date": "2026-08-03"}},
		{"end before start", map[string]string{"start_date": "2026-08-05", "end_date": "2026-08-03"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.rent(t, token, 1, tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRentHappyPath(t *testing.T) {
	env := newReservationTestEnv(t, newStubBikes(types.Bike{ID: 1, Name: "City Cruiser", PricePerDay: 5000, TotalQuantity: 1, AvailableQuantity: 1, Status: types.BikeAvailable}))
	token := env.tokenFor(t, env.userID)

	rec := env.rent(t, token, 1, map[string]string{
		"start_date": "2026-08-01",
		"end_date":   "2026-08-03",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var reservation types.Reservation
	if err := json.NewDecoder(rec.Body).Decode(&reservation); err != nil {
		t.Fatalf("decode reservation: %v", err)
	}
	if reservation.Code == "" {
		t.Fatalf("expected reservation code in response")
	}
	if reservation.TotalCost == nil || *reservation.TotalCost != 2*5000 {
		t.Fatalf("expected cost 10000, got %v", reservation.TotalCost)
	}
}

func TestRentSoldOutBikeRejected(t *testing.T) {
	env := newReservationTestEnv(t, newStubBikes(types.Bike{ID: 1, PricePerDay: 5000, TotalQuantity: 1, AvailableQuantity: 0, Status: types.BikeAvailable}))
	token := env.tokenFor(t, env.userID)

	rec := env.rent(t, token, 1, map[string]string{
		"start_date": "2026-08-01",
		"end_date":   "2026-08-03",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for sold-out bike, got %d", rec.Code)
	}
}

func TestReservationAdminRoutesGateByRole(t *testing.T) {
	env := newReservationTestEnv(t, newStubBikes(types.Bike{ID: 1, PricePerDay: 5000, TotalQuantity: 1, AvailableQuantity: 1, Status: types.BikeAvailable}))
	userToken := env.tokenFor(t, env.userID)
	adminToken := env.tokenFor(t, env.adminID)

	req := httptest.NewRequest(http.MethodGet, "/reservations/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin list, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/reservations/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin list, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestParseDateAcceptsBothFormats(t *testing.T) {
	if _, err := parseDate("2026-08-01"); err != nil {
		t.Fatalf("plain date rejected: %v", err)
	}
	if _, err := parseDate("2026-08-01T10:30:00Z"); err != nil {
		t.Fatalf("RFC3339 date rejected: %v", err)
	}
	if _, err := parseDate("01/08/2026"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
