package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sparkride/apiserver/types"
)

// StationRepository handles persistence for stations.
type StationRepository struct {
	db *sql.DB
}

func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db}
}

func (r *StationRepository) List(ctx context.Context) ([]types.Station, error) {
	const query = `
		SELECT id, name, address, created_at, updated_at
		FROM stations
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]types.Station, 0)
	for rows.Next() {
		var station types.Station
		if err := rows.Scan(
			&station.ID,
			&station.Name,
			&station.Address,
			&station.CreatedAt,
			&station.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	return stations, rows.Err()
}

func (r *StationRepository) Get(ctx context.Context, id int) (types.Station, error) {
	const query = `
		SELECT id, name, address, created_at, updated_at
		FROM stations
		WHERE id = $1`
	var station types.Station
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&station.ID,
		&station.Name,
		&station.Address,
		&station.CreatedAt,
		&station.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Station{}, ErrNotFound
		}
		return types.Station{}, err
	}
	return station, nil
}

func (r *StationRepository) Create(ctx context.Context, station types.Station) (types.Station, error) {
	now := time.Now()
	station.CreatedAt = now
	station.UpdatedAt = now

	const query = `
		INSERT INTO stations (name, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		station.Name,
		station.Address,
		station.CreatedAt,
		station.UpdatedAt,
	).Scan(&station.ID); err != nil {
		return types.Station{}, err
	}
	return station, nil
}

func (r *StationRepository) Update(ctx context.Context, station types.Station) (types.Station, error) {
	station.UpdatedAt = time.Now()

	const query = `
		UPDATE stations
		SET name = $1,
			address = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(
		ctx,
		query,
		station.Name,
		station.Address,
		station.UpdatedAt,
		station.ID,
	)
	if err != nil {
		return types.Station{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Station{}, err
	}
	if affected == 0 {
		return types.Station{}, ErrNotFound
	}
	return station, nil
}

func (r *StationRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM stations WHERE id = $1`
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
