package store

import (
	"context"
	"database/sql"

	"github.com/sparkride/apiserver/types"
)

// AnalyticsRepository runs read-only rollup queries for the admin
// dashboard. All queries are side-effect free.
type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// TotalRevenue sums total_cost over all reservations, 0 when none exist.
func (r *AnalyticsRepository) TotalRevenue(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(total_cost), 0) FROM reservations`
	var total int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *AnalyticsRepository) TotalBikes(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM bikes`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *AnalyticsRepository) TotalReservations(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM reservations`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// TopBikes returns the bikes with the most reservations, busiest first.
func (r *AnalyticsRepository) TopBikes(ctx context.Context, limit int) ([]types.BikeRentals, error) {
	const query = `
		SELECT r.bike_id, b.name, COUNT(1) AS total_rentals
		FROM reservations r
		JOIN bikes b ON b.id = r.bike_id
		GROUP BY r.bike_id, b.name
		ORDER BY total_rentals DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.BikeRentals, 0, limit)
	for rows.Next() {
		var item types.BikeRentals
		if err := rows.Scan(&item.BikeID, &item.BikeName, &item.TotalRentals); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// TopStations returns the stations with the most reservation activity.
func (r *AnalyticsRepository) TopStations(ctx context.Context, limit int) ([]types.StationActivity, error) {
	const query = `
		SELECT r.station_id, s.name, COUNT(1) AS total_activity
		FROM reservations r
		JOIN stations s ON s.id = r.station_id
		GROUP BY r.station_id, s.name
		ORDER BY total_activity DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.StationActivity, 0, limit)
	for rows.Next() {
		var item types.StationActivity
		if err := rows.Scan(&item.StationID, &item.StationName, &item.TotalActivity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RevenueByMonth breaks down revenue of returned reservations by the
// calendar year-month of their end date, ascending.
func (r *AnalyticsRepository) RevenueByMonth(ctx context.Context) ([]types.MonthlyRevenue, error) {
	const query = `
		SELECT to_char(end_date, 'YYYY-MM') AS month, SUM(total_cost)
		FROM reservations
		WHERE status = 'returned' AND end_date IS NOT NULL
		GROUP BY month
		ORDER BY month`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.MonthlyRevenue, 0)
	for rows.Next() {
		var item types.MonthlyRevenue
		if err := rows.Scan(&item.Month, &item.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
