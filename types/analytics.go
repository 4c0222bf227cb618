package types

// BikeRentals is a dashboard rollup row: how often a bike was rented.
type BikeRentals struct {
	BikeID       int    `json:"bike_id"`
	BikeName     string `json:"bike_name"`
	TotalRentals int    `json:"total_rentals"`
}

// StationActivity is a dashboard rollup row: reservation count per station.
type StationActivity struct {
	StationID     int    `json:"station_id"`
	StationName   string `json:"station_name"`
	TotalActivity int    `json:"total_activity"`
}

// MonthlyRevenue is revenue of returned reservations for one calendar
// year-month, keyed "YYYY-MM".
type MonthlyRevenue struct {
	Month        string `json:"month"`
	TotalRevenue int64  `json:"total_revenue"`
}
