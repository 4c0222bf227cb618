package types

import "time"

// Station represents a physical pickup/dropoff location for bikes.
// The set of bikes at a station is derived from Bike.StationID; it is
// never stored on the station itself.
type Station struct {
	// ID is the unique identifier of the station.
	ID int `json:"id" db:"id"`

	// Name is the human-readable name of the station.
	Name string `json:"name" db:"name"`

	// Address is the street address of the station.
	Address string `json:"address" db:"address"`

	// Bikes is the derived list of bikes assigned to this station.
	// Populated on reads only.
	Bikes []Bike `json:"bikes,omitempty" db:"-"`

	// CreatedAt is the timestamp at which the station was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the station.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
