package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

// Reservation event channels.
const (
	EventReservationRented   = "reservation.rented"
	EventReservationReturned = "reservation.returned"
	EventReservationDeleted  = "reservation.deleted"
)

const (
	codePrefix      = "RID"
	codeMaxAttempts = 64
)

// Reservation engine errors mapped to client failures by the handlers.
var (
	// ErrBikeUnavailable means the bike has no free unit or is out of
	// service.
	ErrBikeUnavailable = errors.New("bike not available for rent")

	// ErrInvalidDates means the rental window is missing or the end date
	// is not strictly after the start date.
	ErrInvalidDates = errors.New("end date must be after the start date")

	// ErrAlreadyReturned means the reservation has already completed.
	ErrAlreadyReturned = errors.New("reservation already returned")

	// ErrNotOwner means the caller is neither the renter nor an admin.
	ErrNotOwner = errors.New("reservation belongs to another user")

	// ErrInvalidStatus means a status override named an unknown status.
	ErrInvalidStatus = errors.New("invalid reservation status")

	// ErrCodeSpaceExhausted means no free reservation code was found
	// within the bounded number of draws.
	ErrCodeSpaceExhausted = errors.New("reservation code space exhausted")
)

// ReservationRepository defines persistence operations for reservations.
type ReservationRepository interface {
	Get(ctx context.Context, id int) (types.Reservation, error)
	List(ctx context.Context) ([]types.Reservation, error)
	ListByUser(ctx context.Context, userID int) ([]types.Reservation, error)
	Create(ctx context.Context, reservation types.Reservation) (types.Reservation, error)
	MarkReturned(ctx context.Context, id int, endDate time.Time, totalCost *int64) (bool, error)
	SetStatus(ctx context.Context, id int, status string) error
	Delete(ctx context.Context, id int) error
	CodeExists(ctx context.Context, code string) (bool, error)
	ListWithoutCode(ctx context.Context) ([]int, error)
	SetCode(ctx context.Context, id int, code string) error
}

// BikeAvailability is the slice of the bike repository the reservation
// engine needs.
type BikeAvailability interface {
	Get(ctx context.Context, id int) (types.Bike, error)
	TryAcquireUnit(ctx context.Context, id int) (bool, error)
	ReleaseUnit(ctx context.Context, id int) error
}

// EventPublisher emits reservation lifecycle events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ReservationService encapsulates the rent/return/override/delete workflow.
type ReservationService struct {
	repo   ReservationRepository
	bikes  BikeAvailability
	events EventPublisher
	now    func() time.Time
}

// NewReservationService constructs the reservation engine. events may be
// nil, in which case lifecycle events are skipped.
func NewReservationService(repo ReservationRepository, bikes BikeAvailability, events EventPublisher) *ReservationService {
	return &ReservationService{
		repo:   repo,
		bikes:  bikes,
		events: events,
		now:    time.Now,
	}
}

// Rent reserves one unit of the bike for the given window. The unit is
// acquired with an atomic conditional decrement before the reservation row
// is written; if that write fails the unit is released again.
func (s *ReservationService) Rent(ctx context.Context, userID, bikeID int, startDate, endDate time.Time) (types.Reservation, error) {
	if startDate.IsZero() || endDate.IsZero() || !endDate.After(startDate) {
		return types.Reservation{}, ErrInvalidDates
	}

	bike, err := s.bikes.Get(ctx, bikeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Reservation{}, ErrBikeUnavailable
		}
		return types.Reservation{}, err
	}
	if bike.AvailableQuantity <= 0 || bike.Status == types.BikeUnavailable {
		return types.Reservation{}, ErrBikeUnavailable
	}

	totalCost := int64(RentalDays(startDate, endDate)) * bike.PricePerDay

	code, err := s.generateCode(ctx)
	if err != nil {
		return types.Reservation{}, err
	}

	acquired, err := s.bikes.TryAcquireUnit(ctx, bikeID)
	if err != nil {
		return types.Reservation{}, err
	}
	if !acquired {
		return types.Reservation{}, ErrBikeUnavailable
	}

	reservation := types.Reservation{
		Code:      code,
		UserID:    userID,
		BikeID:    &bikeID,
		StationID: bike.StationID,
		StartDate: startDate,
		Status:    types.ReservationReserved,
		TotalCost: &totalCost,
	}

	created, err := s.repo.Create(ctx, reservation)
	if err != nil {
		// Give the unit back so a failed insert cannot leak availability.
		if releaseErr := s.bikes.ReleaseUnit(ctx, bikeID); releaseErr != nil {
			log.Printf("release after failed reservation insert: %v", releaseErr)
		}
		return types.Reservation{}, err
	}

	s.publish(ctx, EventReservationRented, created)
	return created, nil
}

// Return completes a reservation. The cost is recomputed from the actual
// elapsed time, overwriting the rent-time estimate. Only the renter or an
// admin may return a reservation; the transition is idempotent on
// availability.
func (s *ReservationService) Return(ctx context.Context, reservationID, callerID int, callerIsAdmin bool) (types.Reservation, error) {
	reservation, err := s.repo.Get(ctx, reservationID)
	if err != nil {
		return types.Reservation{}, err
	}
	if reservation.UserID != callerID && !callerIsAdmin {
		return types.Reservation{}, ErrNotOwner
	}
	if !reservation.Active() {
		return types.Reservation{}, ErrAlreadyReturned
	}

	endDate := s.now()
	var totalCost *int64
	if reservation.BikeID != nil {
		bike, err := s.bikes.Get(ctx, *reservation.BikeID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.Reservation{}, err
		}
		if err == nil {
			cost := int64(RentalDays(reservation.StartDate, endDate)) * bike.PricePerDay
			totalCost = &cost
		}
	}

	returned, err := s.repo.MarkReturned(ctx, reservationID, endDate, totalCost)
	if err != nil {
		return types.Reservation{}, err
	}
	if !returned {
		return types.Reservation{}, ErrAlreadyReturned
	}

	if reservation.BikeID != nil {
		if err := s.bikes.ReleaseUnit(ctx, *reservation.BikeID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.Reservation{}, err
		}
	}

	reservation.Status = types.ReservationReturned
	reservation.EndDate = &endDate
	if totalCost != nil {
		reservation.TotalCost = totalCost
	}

	s.publish(ctx, EventReservationReturned, reservation)
	return reservation, nil
}

// OverrideStatus is the admin escape hatch for fixing a reservation's
// status. Overriding to returned releases the bike unit only when the
// reservation was still active, so repeated overrides cannot inflate
// availability.
func (s *ReservationService) OverrideStatus(ctx context.Context, reservationID int, status string) (types.Reservation, error) {
	if status != types.ReservationReserved && status != types.ReservationReturned {
		return types.Reservation{}, ErrInvalidStatus
	}

	reservation, err := s.repo.Get(ctx, reservationID)
	if err != nil {
		return types.Reservation{}, err
	}

	if status == types.ReservationReturned {
		endDate := s.now()
		returned, err := s.repo.MarkReturned(ctx, reservationID, endDate, nil)
		if err != nil {
			return types.Reservation{}, err
		}
		if returned {
			if reservation.BikeID != nil {
				if err := s.bikes.ReleaseUnit(ctx, *reservation.BikeID); err != nil && !errors.Is(err, store.ErrNotFound) {
					return types.Reservation{}, err
				}
			}
			reservation.EndDate = &endDate
		}
		reservation.Status = types.ReservationReturned
		return reservation, nil
	}

	if err := s.repo.SetStatus(ctx, reservationID, status); err != nil {
		return types.Reservation{}, err
	}
	reservation.Status = status
	return reservation, nil
}

// Delete removes a reservation, restoring the bike unit if it was still
// active. A missing bike is skipped silently.
func (s *ReservationService) Delete(ctx context.Context, reservationID int) error {
	reservation, err := s.repo.Get(ctx, reservationID)
	if err != nil {
		return err
	}

	if reservation.Active() && reservation.BikeID != nil {
		if err := s.bikes.ReleaseUnit(ctx, *reservation.BikeID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	if err := s.repo.Delete(ctx, reservationID); err != nil {
		return err
	}

	s.publish(ctx, EventReservationDeleted, reservation)
	return nil
}

func (s *ReservationService) Get(ctx context.Context, id int) (types.Reservation, error) {
	return s.repo.Get(ctx, id)
}

func (s *ReservationService) List(ctx context.Context) ([]types.Reservation, error) {
	return s.repo.List(ctx)
}

func (s *ReservationService) ListByUser(ctx context.Context, userID int) ([]types.Reservation, error) {
	return s.repo.ListByUser(ctx, userID)
}

// BackfillCodes assigns reservation codes to rows that lack one. Run once
// at startup; a no-op on stores seeded with codes from creation.
func (s *ReservationService) BackfillCodes(ctx context.Context) (int, error) {
	ids, err := s.repo.ListWithoutCode(ctx)
	if err != nil {
		return 0, err
	}

	for i, id := range ids {
		code, err := s.generateCode(ctx)
		if err != nil {
			return i, err
		}
		if err := s.repo.SetCode(ctx, id, code); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// RentalDays is the billing duration rule: elapsed time divided into whole
// days, partial days rounded up.
func RentalDays(start, end time.Time) int {
	return int(math.Ceil(float64(end.Sub(start)) / float64(24*time.Hour)))
}

// generateCode draws short human-readable codes until an unused one is
// found. The draw count is bounded; the four-digit space holds 9000 codes
// and exhaustion surfaces as an explicit error rather than a spin.
func (s *ReservationService) generateCode(ctx context.Context) (string, error) {
	for range codeMaxAttempts {
		code := fmt.Sprintf("%s%d", codePrefix, 1000+rand.IntN(9000))
		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (s *ReservationService) publish(ctx context.Context, channel string, reservation types.Reservation) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(reservation)
	if err != nil {
		return
	}
	attrs := map[string]string{"reservation_code": reservation.Code}
	if _, err := s.events.Publish(ctx, channel, data, attrs); err != nil {
		log.Printf("publish %s: %v", channel, err)
	}
}
