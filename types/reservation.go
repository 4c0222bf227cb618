package types

import "time"

// Reservation status values.
const (
	ReservationReserved = "reserved"
	ReservationReturned = "returned"
)

// Reservation represents a time-bounded claim by a user on one unit of a
// bike's availability. A reservation is created on rent with status
// "reserved" and transitions exactly once to "returned", at which point
// the end date and final cost are fixed.
type Reservation struct {
	// ID is the unique identifier of the reservation.
	ID int `json:"id" db:"id"`

	// Code is the short human-readable reservation identifier handed to
	// the customer, in the form "RID" followed by four decimal digits.
	// It is unique across all reservations.
	Code string `json:"reservation_id" db:"reservation_id"`

	// UserID references the renting user.
	UserID int `json:"user_id" db:"user_id"`

	// BikeID references the rented bike. Nil after the bike was deleted.
	BikeID *int `json:"bike_id" db:"bike_id"`

	// BikeName is the joined-in name of the rented bike. Populated on
	// reads only.
	BikeName string `json:"bike_name,omitempty" db:"-"`

	// StationID is the bike's station captured at rent time. It is not
	// re-derived later; reassigning the bike does not move past
	// reservations. Nil after the station was deleted.
	StationID *int `json:"station_id" db:"station_id"`

	// StationName is the joined-in name of the captured station.
	// Populated on reads only.
	StationName string `json:"station_name,omitempty" db:"-"`

	// StartDate is the first day of the rental.
	StartDate time.Time `json:"start_date" db:"start_date"`

	// EndDate is when the bike came back. Nil while the reservation is
	// active. On rent it is left unset even though the renter declared
	// an intended end date; the declared window only sizes the upfront
	// cost estimate.
	EndDate *time.Time `json:"end_date" db:"end_date"`

	// Status is "reserved" while active and "returned" afterwards.
	Status string `json:"status" db:"status"`

	// TotalCost is the rental cost in the platform's minor currency
	// unit. At rent time it is an estimate from the declared window; on
	// return it is overwritten with the cost of the actual elapsed time.
	TotalCost *int64 `json:"total_cost" db:"total_cost"`

	// CreatedAt is the timestamp at which the reservation was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether the reservation still holds a bike unit.
func (r Reservation) Active() bool {
	return r.Status == ReservationReserved
}
