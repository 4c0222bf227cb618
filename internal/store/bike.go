package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/sparkride/apiserver/types"
)

// BikeRepository handles persistence for bikes and their reviews.
type BikeRepository struct {
	db *sql.DB
}

func NewBikeRepository(db *sql.DB) *BikeRepository {
	return &BikeRepository{db: db}
}

const bikeColumns = `
	b.id, b.name, b.description, b.price_per_day, b.total_quantity,
	b.available_quantity, b.images, b.station_id, s.name, b.status,
	b.average_rating, b.created_at, b.updated_at`

func (r *BikeRepository) List(ctx context.Context) ([]types.Bike, error) {
	const query = `
		SELECT` + bikeColumns + `
		FROM bikes b
		LEFT JOIN stations s ON s.id = b.station_id
		ORDER BY b.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBikes(rows)
}

func (r *BikeRepository) ListByStation(ctx context.Context, stationID int) ([]types.Bike, error) {
	const query = `
		SELECT` + bikeColumns + `
		FROM bikes b
		LEFT JOIN stations s ON s.id = b.station_id
		WHERE b.station_id = $1
		ORDER BY b.id`
	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBikes(rows)
}

func (r *BikeRepository) Get(ctx context.Context, id int) (types.Bike, error) {
	const query = `
		SELECT` + bikeColumns + `
		FROM bikes b
		LEFT JOIN stations s ON s.id = b.station_id
		WHERE b.id = $1`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return types.Bike{}, err
	}
	defer rows.Close()

	bikes, err := scanBikes(rows)
	if err != nil {
		return types.Bike{}, err
	}
	if len(bikes) == 0 {
		return types.Bike{}, ErrNotFound
	}
	return bikes[0], nil
}

func (r *BikeRepository) Create(ctx context.Context, bike types.Bike) (types.Bike, error) {
	now := time.Now()
	bike.CreatedAt = now
	bike.UpdatedAt = now

	imagesJSON, err := json.Marshal(bike.Images)
	if err != nil {
		return types.Bike{}, err
	}

	const query = `
		INSERT INTO bikes (name, description, price_per_day, total_quantity,
			available_quantity, images, station_id, status, average_rating,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		bike.Name,
		bike.Description,
		bike.PricePerDay,
		bike.TotalQuantity,
		bike.AvailableQuantity,
		imagesJSON,
		bike.StationID,
		bike.Status,
		bike.AverageRating,
		bike.CreatedAt,
		bike.UpdatedAt,
	).Scan(&bike.ID); err != nil {
		return types.Bike{}, err
	}
	return bike, nil
}

func (r *BikeRepository) Update(ctx context.Context, bike types.Bike) (types.Bike, error) {
	bike.UpdatedAt = time.Now()

	imagesJSON, err := json.Marshal(bike.Images)
	if err != nil {
		return types.Bike{}, err
	}

	const query = `
		UPDATE bikes
		SET name = $1,
			description = $2,
			price_per_day = $3,
			total_quantity = $4,
			available_quantity = $5,
			images = $6,
			station_id = $7,
			status = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		bike.Name,
		bike.Description,
		bike.PricePerDay,
		bike.TotalQuantity,
		bike.AvailableQuantity,
		imagesJSON,
		bike.StationID,
		bike.Status,
		bike.UpdatedAt,
		bike.ID,
	)
	if err != nil {
		return types.Bike{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Bike{}, err
	}
	if affected == 0 {
		return types.Bike{}, ErrNotFound
	}
	return bike, nil
}

func (r *BikeRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM bikes WHERE id = $1`
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

// TryAcquireUnit atomically takes one available unit of a rentable bike.
// It reports false when the bike has no free units, is out of service, or
// does not exist. The conditional UPDATE is what prevents two concurrent
// rents from both taking the last unit.
func (r *BikeRepository) TryAcquireUnit(ctx context.Context, id int) (bool, error) {
	const query = `
		UPDATE bikes
		SET available_quantity = available_quantity - 1,
			updated_at = NOW()
		WHERE id = $1
		  AND available_quantity > 0
		  AND status = 'available'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReleaseUnit returns one unit to the bike's availability, clamped so it
// never exceeds total_quantity.
func (r *BikeRepository) ReleaseUnit(ctx context.Context, id int) error {
	const query = `
		UPDATE bikes
		SET available_quantity = LEAST(available_quantity + 1, total_quantity),
			updated_at = NOW()
		WHERE id = $1`
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

// AddReview appends a review and recomputes the bike's average rating in
// the same transaction.
func (r *BikeRepository) AddReview(ctx context.Context, review types.Review) (types.Review, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Review{}, err
	}
	defer tx.Rollback()

	review.CreatedAt = time.Now()

	const insertQuery = `
		INSERT INTO reviews (bike_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertQuery,
		review.BikeID,
		review.UserID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	).Scan(&review.ID); err != nil {
		return types.Review{}, err
	}

	const ratingQuery = `
		UPDATE bikes
		SET average_rating = (SELECT AVG(rating) FROM reviews WHERE bike_id = $1),
			updated_at = NOW()
		WHERE id = $1`
	result, err := tx.ExecContext(ctx, ratingQuery, review.BikeID)
	if err != nil {
		return types.Review{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Review{}, err
	}
	if affected == 0 {
		return types.Review{}, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return types.Review{}, err
	}
	return review, nil
}

// ListReviewsForBikes loads reviews for the given bikes in one query,
// reviewer names included.
func (r *BikeRepository) ListReviewsForBikes(ctx context.Context, bikeIDs []int) ([]types.Review, error) {
	if len(bikeIDs) == 0 {
		return nil, nil
	}

	const query = `
		SELECT r.id, r.bike_id, r.user_id, u.name, r.rating, r.comment, r.created_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.bike_id = ANY($1)
		ORDER BY r.bike_id, r.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(bikeIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]types.Review, 0)
	for rows.Next() {
		var review types.Review
		if err := rows.Scan(
			&review.ID,
			&review.BikeID,
			&review.UserID,
			&review.UserName,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func scanBikes(rows *sql.Rows) ([]types.Bike, error) {
	bikes := make([]types.Bike, 0)
	for rows.Next() {
		var bike types.Bike
		var imagesJSON []byte
		var stationName sql.NullString
		if err := rows.Scan(
			&bike.ID,
			&bike.Name,
			&bike.Description,
			&bike.PricePerDay,
			&bike.TotalQuantity,
			&bike.AvailableQuantity,
			&imagesJSON,
			&bike.StationID,
			&stationName,
			&bike.Status,
			&bike.AverageRating,
			&bike.CreatedAt,
			&bike.UpdatedAt,
		); err != nil {
			return nil, err
		}

		_ = json.Unmarshal(imagesJSON, &bike.Images)
		if stationName.Valid {
			bike.StationName = stationName.String
		}
		bikes = append(bikes, bike)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bikes, nil
}
