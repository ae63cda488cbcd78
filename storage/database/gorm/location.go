package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/atlportal/backend/core/location"
)

type locationRepository struct {
	db *DB
}

var _ location.Repository = (*locationRepository)(nil) // interface compliance check

func NewLocationRepository(db *DB) location.Repository {
	return &locationRepository{db: db}
}

func (repo *locationRepository) cities(ctx context.Context) *gorm.DB {
	return repo.db.conn(ctx).
		Table("cities").
		Select("cities.id, cities.name, cities.state_id, states.name AS state, countries.name AS country").
		Joins("JOIN states ON states.id = cities.state_id").
		Joins("JOIN countries ON countries.id = states.country_id")
}

func (repo *locationRepository) GetCity(ctx context.Context, id int) (location.City, error) {
	var rows []cityRow
	if err := repo.cities(ctx).Where("cities.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return location.City{}, errors.Wrap(err, "finding city")
	}
	if len(rows) == 0 {
		return location.City{}, location.ErrCityNotFound
	}
	return rows[0].city(), nil
}

func (repo *locationRepository) QueryCities(ctx context.Context, filter *location.QueryFilter) ([]location.City, error) {
	tx := repo.cities(ctx)
	if filter != nil {
		if filter.Search != "" {
			tx = likeAny(tx, filter.Search, "cities.name")
		}
		if filter.StateID != 0 {
			tx = tx.Where("cities.state_id = ?", filter.StateID)
		}
	}

	var rows []cityRow
	if err := tx.Order("cities.name").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying cities")
	}
	cities := make([]location.City, 0, len(rows))
	for _, row := range rows {
		cities = append(cities, row.city())
	}
	return cities, nil
}

func (repo *locationRepository) UpsertCity(ctx context.Context, country, state, city string) (location.City, error) {
	conn := repo.db.conn(ctx)

	c := countryModel{Name: country}
	if err := conn.Where(&c).FirstOrCreate(&c).Error; err != nil {
		return location.City{}, errors.Wrap(err, "upserting country")
	}
	s := stateModel{Name: state, CountryID: c.ID}
	if err := conn.Where(&s).FirstOrCreate(&s).Error; err != nil {
		return location.City{}, errors.Wrap(err, "upserting state")
	}
	ci := cityModel{Name: city, StateID: s.ID}
	if err := conn.Where(&ci).FirstOrCreate(&ci).Error; err != nil {
		return location.City{}, errors.Wrap(err, "upserting city")
	}
	return repo.GetCity(ctx, ci.ID)
}
