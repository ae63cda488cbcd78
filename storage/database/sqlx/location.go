package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core/location"
)

const cityQuery = `SELECT ci.id, ci.name, ci.state_id, s.name AS state, co.name AS country
	FROM cities ci
		JOIN states s ON s.id = ci.state_id
		JOIN countries co ON co.id = s.country_id`

type cityRow struct {
	ID      int    `db:"id"`
	Name    string `db:"name"`
	StateID int    `db:"state_id"`
	State   string `db:"state"`
	Country string `db:"country"`
}

func (row cityRow) city() location.City {
	return location.City(row)
}

type locationRepository struct {
	db *DB
}

var _ location.Repository = (*locationRepository)(nil) // interface compliance check

func NewLocationRepository(db *DB) location.Repository {
	return &locationRepository{db: db}
}

func (repo *locationRepository) GetCity(ctx context.Context, id int) (location.City, error) {
	var row cityRow
	if err := sqlx.GetContext(ctx, repo.db.getExec(ctx), &row, cityQuery+` WHERE ci.id = $1`, id); err != nil {
		return location.City{}, trapNoRowsErr(err, location.ErrCityNotFound, "finding city")
	}
	return row.city(), nil
}

func (repo *locationRepository) QueryCities(ctx context.Context, filter *location.QueryFilter) ([]location.City, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			conds = append(conds, fmt.Sprintf("ci.name ILIKE $%d", len(args)))
		}
		if filter.StateID != 0 {
			args = append(args, filter.StateID)
			conds = append(conds, fmt.Sprintf("ci.state_id = $%d", len(args)))
		}
	}
	q := cityQuery
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY ci.name"

	var rows []cityRow
	if err := sqlx.SelectContext(ctx, repo.db.getExec(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying cities")
	}
	cities := make([]location.City, 0, len(rows))
	for _, row := range rows {
		cities = append(cities, row.city())
	}
	return cities, nil
}

func (repo *locationRepository) UpsertCity(ctx context.Context, country, state, city string) (location.City, error) {
	exec := repo.db.getExec(ctx)

	var countryID, stateID, cityID int
	err := sqlx.GetContext(ctx, exec, &countryID,
		`INSERT INTO countries (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, country)
	if err != nil {
		return location.City{}, errors.Wrap(err, "upserting country")
	}
	err = sqlx.GetContext(ctx, exec, &stateID,
		`INSERT INTO states (name, country_id) VALUES ($1, $2)
		ON CONFLICT (country_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, state, countryID)
	if err != nil {
		return location.City{}, errors.Wrap(err, "upserting state")
	}
	err = sqlx.GetContext(ctx, exec, &cityID,
		`INSERT INTO cities (name, state_id) VALUES ($1, $2)
		ON CONFLICT (state_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, city, stateID)
	if err != nil {
		return location.City{}, errors.Wrap(err, "upserting city")
	}
	return repo.GetCity(ctx, cityID)
}
