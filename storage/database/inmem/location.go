package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/atlportal/backend/core/location"
)

type locationRepository struct {
	db *DB
}

var _ location.Repository = (*locationRepository)(nil) // interface compliance check

func NewLocationRepository(db *DB) location.Repository {
	return &locationRepository{db: db}
}

// withNames must be called with the lock held.
func (repo *locationRepository) withNames(city location.City) location.City {
	state := repo.db.location.states[city.StateID]
	city.State = state.Name
	city.Country = repo.db.location.countries[state.CountryID].Name
	return city
}

func (repo *locationRepository) GetCity(_ context.Context, id int) (location.City, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	city, ok := repo.db.location.cities[id]
	if !ok {
		return location.City{}, location.ErrCityNotFound
	}
	return repo.withNames(city), nil
}

func (repo *locationRepository) QueryCities(_ context.Context, filter *location.QueryFilter) ([]location.City, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cities := make([]location.City, 0, len(repo.db.location.cities))
	for _, city := range repo.db.location.cities {
		if filter != nil {
			if filter.Search != "" && !matchesAny(filter.Search, city.Name) {
				continue
			}
			if filter.StateID != 0 && city.StateID != filter.StateID {
				continue
			}
		}
		cities = append(cities, repo.withNames(city))
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].Name < cities[j].Name })
	return cities, nil
}

func (repo *locationRepository) UpsertCity(_ context.Context, country, state, city string) (location.City, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	loc := &repo.db.location

	var co location.Country
	for _, c := range loc.countries {
		if strings.EqualFold(c.Name, country) {
			co = c
		}
	}
	if co.ID == 0 {
		loc.seq++
		co = location.Country{ID: loc.seq, Name: country}
		loc.countries[co.ID] = co
	}

	var st location.State
	for _, s := range loc.states {
		if s.CountryID == co.ID && strings.EqualFold(s.Name, state) {
			st = s
		}
	}
	if st.ID == 0 {
		loc.seq++
		st = location.State{ID: loc.seq, Name: state, CountryID: co.ID}
		loc.states[st.ID] = st
	}

	for _, c := range loc.cities {
		if c.StateID == st.ID && strings.EqualFold(c.Name, city) {
			return repo.withNames(c), nil
		}
	}
	loc.seq++
	ct := location.City{ID: loc.seq, Name: city, StateID: st.ID}
	loc.cities[ct.ID] = ct
	return repo.withNames(ct), nil
}
