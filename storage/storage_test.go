package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		engine  string
		dbName  string
		wantErr bool
	}{
		{name: "inmem", backend: core.BackendInMem},
		{name: "gorm sqlite", backend: core.BackendGorm, engine: engineSQLite, dbName: "file::memory:"},
		{name: "unknown backend", backend: "lol", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := core.NewTestConfig()
			conf.Database.Backend = tc.backend
			conf.Database.Engine = tc.engine
			conf.Database.Name = tc.dbName

			repos, err := Open(conf)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { assert.NoError(t, repos.Close()) }()

			cities, err := repos.Locations.QueryCities(context.Background(), &location.QueryFilter{Search: "pune"})
			require.NoError(t, err)
			require.Len(t, cities, 1)
			assert.Equal(t, "Maharashtra", cities[0].State)
			assert.Equal(t, "India", cities[0].Country)
		})
	}
}
