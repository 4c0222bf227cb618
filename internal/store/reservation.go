package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/sparkride/apiserver/types"
)

// ReservationRepository handles persistence for reservations.
type ReservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `
	r.id, r.reservation_id, r.user_id, r.bike_id, b.name, r.station_id,
	s.name, r.start_date, r.end_date, r.status, r.total_cost, r.created_at`

const reservationJoins = `
	FROM reservations r
	LEFT JOIN bikes b ON b.id = r.bike_id
	LEFT JOIN stations s ON s.id = r.station_id`

func (r *ReservationRepository) Get(ctx context.Context, id int) (types.Reservation, error) {
	const query = `
		SELECT` + reservationColumns + reservationJoins + `
		WHERE r.id = $1`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return types.Reservation{}, err
	}
	defer rows.Close()

	reservations, err := scanReservations(rows)
	if err != nil {
		return types.Reservation{}, err
	}
	if len(reservations) == 0 {
		return types.Reservation{}, ErrNotFound
	}
	return reservations[0], nil
}

func (r *ReservationRepository) List(ctx context.Context) ([]types.Reservation, error) {
	const query = `
		SELECT` + reservationColumns + reservationJoins + `
		ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID int) ([]types.Reservation, error) {
	const query = `
		SELECT` + reservationColumns + reservationJoins + `
		WHERE r.user_id = $1
		ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *ReservationRepository) Create(ctx context.Context, reservation types.Reservation) (types.Reservation, error) {
	reservation.CreatedAt = time.Now()

	const query = `
		INSERT INTO reservations (reservation_id, user_id, bike_id, station_id,
			start_date, end_date, status, total_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		reservation.Code,
		reservation.UserID,
		reservation.BikeID,
		reservation.StationID,
		reservation.StartDate,
		reservation.EndDate,
		reservation.Status,
		reservation.TotalCost,
		reservation.CreatedAt,
	).Scan(&reservation.ID); err != nil {
		return types.Reservation{}, err
	}
	return reservation, nil
}

// MarkReturned flips an active reservation to returned, recording the end
// date and, when given, the final cost. The status guard makes the
// transition happen at most once; it reports false when the reservation
// was already returned.
func (r *ReservationRepository) MarkReturned(ctx context.Context, id int, endDate time.Time, totalCost *int64) (bool, error) {
	const query = `
		UPDATE reservations
		SET status = 'returned',
			end_date = $1,
			total_cost = COALESCE($2, total_cost)
		WHERE id = $3
		  AND status = 'reserved'`
	result, err := r.db.ExecContext(ctx, query, endDate, totalCost, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetStatus rewrites the status field only. Availability bookkeeping for
// transitions is handled by the caller.
func (r *ReservationRepository) SetStatus(ctx context.Context, id int, status string) error {
	const query = `UPDATE reservations SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReservationRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM reservations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CodeExists reports whether a reservation already carries the given code.
func (r *ReservationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reservations WHERE reservation_id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListWithoutCode returns ids of reservations missing a reservation code.
// Only seed or legacy data can be in this state.
func (r *ReservationRepository) ListWithoutCode(ctx context.Context) ([]int, error) {
	const query = `SELECT id FROM reservations WHERE reservation_id IS NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetCode assigns a reservation code to an existing reservation.
func (r *ReservationRepository) SetCode(ctx context.Context, id int, code string) error {
	const query = `UPDATE reservations SET reservation_id = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, code, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReservations(rows *sql.Rows) ([]types.Reservation, error) {
	reservations := make([]types.Reservation, 0)
	for rows.Next() {
		var reservation types.Reservation
		var code sql.NullString
		var bikeName, stationName sql.NullString
		var endDate sql.NullTime
		var totalCost sql.NullInt64
		if err := rows.Scan(
			&reservation.ID,
			&code,
			&reservation.UserID,
			&reservation.BikeID,
			&bikeName,
			&reservation.StationID,
			&stationName,
			&reservation.StartDate,
			&endDate,
			&reservation.Status,
			&totalCost,
			&reservation.CreatedAt,
		); err != nil {
			return nil, err
		}

		if code.Valid {
			reservation.Code = code.String
		}
		if bikeName.Valid {
			reservation.BikeName = bikeName.String
		}
		if stationName.Valid {
			reservation.StationName = stationName.String
		}
		if endDate.Valid {
			end := endDate.Time
			reservation.EndDate = &end
		}
		if totalCost.Valid {
			cost := totalCost.Int64
			reservation.TotalCost = &cost
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}
