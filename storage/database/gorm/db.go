package gormrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atlportal/backend/core"
)

type txKey struct{}

const uniqueViolation = "23505"

// DB is a database accessed through gorm.
// The schema is owned by the goose migrations on postgres and by AutoMigrate on sqlite.
type DB struct {
	db *gorm.DB
}

var _ core.Transactor = (*DB)(nil)

func open(dialector gorm.Dialector, debug bool) (*DB, error) {
	lvl := logger.Silent
	if debug {
		lvl = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(lvl),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening gorm database")
	}
	return &DB{db: db}, nil
}

// NewPostgres wraps an open postgres connection pool.
func NewPostgres(db *sql.DB, debug bool) (*DB, error) {
	return open(postgres.New(postgres.Config{Conn: db}), debug)
}

// OpenSQLite opens the sqlite database at dsn and creates its tables.
// "file::memory:" gives a private database.
func OpenSQLite(dsn string, debug bool) (*DB, error) {
	db, err := open(sqlite.Open(dsn), debug)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" shared
	sqlDB, err := db.db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "getting sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)

	if err = db.db.AutoMigrate(models...); err != nil {
		return nil, errors.Wrap(err, "migrating sqlite database")
	}
	return db, nil
}

func (db *DB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InTx runs fn in a transaction. A transaction started in fn's ctx joins the running one.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, or a session of the DB.
func (db *DB) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.db.WithContext(ctx)
}

// trapNotFoundErr maps gorm.ErrRecordNotFound to notFound
func trapNotFoundErr(err error, notFound error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a duplicated key to a core.ConflictError.
// The postgres dialector is fed a lib/pq pool, whose errors gorm does not translate.
func trapUniqueErr(err error, conflict error, field, msg string) error {
	var pqErr *pq.Error
	if errors.Is(err, gorm.ErrDuplicatedKey) || (errors.As(err, &pqErr) && pqErr.Code == uniqueViolation) {
		return core.NewConflictError(conflict, field)
	}
	return errors.Wrap(err, msg)
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func orderBy(tx *gorm.DB, ordering []core.DBOrdering, dflt string) *gorm.DB {
	if len(ordering) == 0 {
		return tx.Order(dflt)
	}
	for _, ord := range ordering {
		tx = tx.Order(ord.String())
	}
	return tx
}

// likeAny matches the lowered search keyword against any of the columns.
func likeAny(tx *gorm.DB, search string, columns ...string) *gorm.DB {
	conds := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		conds = append(conds, "LOWER("+col+") LIKE ?")
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	return tx.Where("("+strings.Join(conds, " OR ")+")", args...)
}
