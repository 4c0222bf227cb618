package types

import "time"

// Bike status values.
const (
	BikeAvailable   = "available"
	BikeUnavailable = "unavailable"
)

// Bike represents a rentable bike model kept at a station.
// A bike row tracks a pool of identical units: TotalQuantity units exist,
// AvailableQuantity of them are currently rentable.
type Bike struct {
	// ID is the unique identifier of the bike.
	ID int `json:"id" db:"id"`

	// Name is the human-readable name of the bike model.
	Name string `json:"name" db:"name"`

	// Description is free-form marketing or maintenance text.
	Description string `json:"description" db:"description"`

	// PricePerDay is the rental price for one whole day, in the
	// platform's minor currency unit.
	PricePerDay int64 `json:"price_per_day" db:"price_per_day"`

	// TotalQuantity is the number of physical units of this bike.
	TotalQuantity int `json:"total_quantity" db:"total_quantity"`

	// AvailableQuantity is the number of units not currently reserved.
	// It never exceeds TotalQuantity; writes that would violate this
	// are clamped rather than rejected.
	AvailableQuantity int `json:"available_quantity" db:"available_quantity"`

	// Images holds object-storage keys of uploaded bike photos.
	Images []string `json:"images" db:"images"`

	// StationID references the station the bike is assigned to. It is
	// the authoritative direction of the station relationship; a
	// station's bike list is derived from it by query. Nil when the
	// station was deleted or never assigned.
	StationID *int `json:"station_id" db:"station_id"`

	// StationName is the joined-in name of the assigned station.
	// Populated on reads only.
	StationName string `json:"station_name,omitempty" db:"-"`

	// Status marks the bike pool as rentable ("available") or taken out
	// of service ("unavailable"). Units of an unavailable bike cannot
	// be rented regardless of AvailableQuantity.
	Status string `json:"status" db:"status"`

	// Reviews is the list of reviews left for this bike. Populated on
	// reads only.
	Reviews []Review `json:"reviews" db:"-"`

	// AverageRating is the arithmetic mean of review ratings. It is
	// recomputed whenever a review is appended and is 0 with no reviews.
	AverageRating float64 `json:"average_rating" db:"average_rating"`

	// CreatedAt is the timestamp at which the bike was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the bike.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Review is a rating left by a user for a bike. Reviews are append-only
// and owned by their bike; there is no edit or delete path.
type Review struct {
	// ID is the unique identifier of the review.
	ID int `json:"id" db:"id"`

	// BikeID references the reviewed bike.
	BikeID int `json:"bike_id" db:"bike_id"`

	// UserID references the reviewing user.
	UserID int `json:"user_id" db:"user_id"`

	// UserName is the joined-in name of the reviewer. Populated on
	// reads only.
	UserName string `json:"user_name,omitempty" db:"-"`

	// Rating is an integer in [1, 5].
	Rating int `json:"rating" db:"rating"`

	// Comment is optional free-form text.
	Comment string `json:"comment" db:"comment"`

	// CreatedAt is the timestamp at which the review was left.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
