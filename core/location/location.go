package location

import (
	"context"

	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
)

var ErrCityNotFound = errors.New("city not found")

type (
	Country struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	State struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		CountryID int    `json:"country_id"`
	}

	// City is read with the names of its state and country.
	City struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		StateID int    `json:"state_id"`
		State   string `json:"state"`
		Country string `json:"country"`
	}

	QueryFilter struct {
		Search  string `query:"search"`
		StateID int    `query:"state_id"`
	}

	Repository interface {
		GetCity(ctx context.Context, id int) (City, error)
		QueryCities(ctx context.Context, filter *QueryFilter) ([]City, error)
		// UpsertCity creates the country, state and city if they do not exist yet, matching on names.
		UpsertCity(ctx context.Context, country, state, city string) (City, error)
	}
)

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
