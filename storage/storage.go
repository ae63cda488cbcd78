// Package storage opens the repositories of the configured backend.
package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
	"github.com/atlportal/backend/storage/database"
	gormrepos "github.com/atlportal/backend/storage/database/gorm"
	inmemdb "github.com/atlportal/backend/storage/database/inmem"
	sqlxrepos "github.com/atlportal/backend/storage/database/sqlx"
)

const engineSQLite = "sqlite3"

// DefaultCities are the cities seeded into stores without migrations: {country, state, city}.
var DefaultCities = [][3]string{
	{"India", "Karnataka", "Bengaluru"},
	{"India", "Karnataka", "Mysuru"},
	{"India", "Maharashtra", "Mumbai"},
	{"India", "Maharashtra", "Pune"},
	{"India", "Tamil Nadu", "Chennai"},
	{"India", "Delhi", "New Delhi"},
}

type Repositories struct {
	Tx        core.Transactor
	Users     user.Repository
	Schools   school.Repository
	Locations location.Repository

	// SQL is the postgres pool of the sqlx and gorm backends; nil otherwise.
	SQL   *sql.DB
	close func() error
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Open opens the repositories of conf.Database.Backend. Postgres databases are created and migrated.
func Open(conf *core.Config) (*Repositories, error) {
	switch conf.Database.Backend {
	case core.BackendInMem:
		return openInMem()
	case core.BackendGorm:
		if conf.Database.Engine == engineSQLite {
			return openSQLite(conf)
		}
		db, err := openPostgres(conf)
		if err != nil {
			return nil, err
		}
		gdb, err := gormrepos.NewPostgres(db, conf.Debug)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Repositories{
			Tx:        gdb,
			Users:     gormrepos.NewUserRepository(gdb),
			Schools:   gormrepos.NewSchoolRepository(gdb),
			Locations: gormrepos.NewLocationRepository(gdb),
			SQL:       db,
			close:     db.Close,
		}, nil
	case core.BackendSQLX:
		db, err := openPostgres(conf)
		if err != nil {
			return nil, err
		}
		xdb := sqlxrepos.NewDB(db)
		return &Repositories{
			Tx:        xdb,
			Users:     sqlxrepos.NewUserRepository(xdb),
			Schools:   sqlxrepos.NewSchoolRepository(xdb),
			Locations: sqlxrepos.NewLocationRepository(xdb),
			SQL:       db,
			close:     db.Close,
		}, nil
	}
	return nil, errors.Errorf("unknown database backend %q", conf.Database.Backend)
}

func openPostgres(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func openInMem() (*Repositories, error) {
	db := inmemdb.Open()
	repos := &Repositories{
		Tx:        db,
		Users:     inmemdb.NewUserRepository(db),
		Schools:   inmemdb.NewSchoolRepository(db),
		Locations: inmemdb.NewLocationRepository(db),
	}
	return repos, seedCities(repos.Locations)
}

func openSQLite(conf *core.Config) (*Repositories, error) {
	gdb, err := gormrepos.OpenSQLite(conf.Database.Name, conf.Debug)
	if err != nil {
		return nil, err
	}
	repos := &Repositories{
		Tx:        gdb,
		Users:     gormrepos.NewUserRepository(gdb),
		Schools:   gormrepos.NewSchoolRepository(gdb),
		Locations: gormrepos.NewLocationRepository(gdb),
		close:     gdb.Close,
	}
	if err = seedCities(repos.Locations); err != nil {
		_ = gdb.Close()
		return nil, err
	}
	return repos, nil
}

func seedCities(repo location.Repository) error {
	for _, c := range DefaultCities {
		if _, err := repo.UpsertCity(context.Background(), c[0], c[1], c[2]); err != nil {
			return errors.Wrapf(err, "seeding %s", c[2])
		}
	}
	return nil
}
