package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
)

// uniqueViolation is the postgres error code of a unique constraint violation.
const uniqueViolation = "23505"

type txKey struct{}

// DB is a postgres database accessed through sqlx.
type DB struct {
	db *sqlx.DB
}

var _ core.Transactor = (*DB)(nil)

func NewDB(db *sql.DB) *DB {
	return &DB{db: sqlx.NewDb(db, "postgres")}
}

// InTx runs fn in a transaction. A transaction started in fn's ctx joins the running one.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

// getExec returns the transaction carried by ctx, or the DB.
func (db *DB) getExec(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db.db
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a unique violation on constraint to a core.ConflictError
func trapUniqueErr(err error, conflict error, field, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return core.NewConflictError(conflict, field)
	}
	return errors.Wrap(err, msg)
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validUUIDs(ids []string) bool {
	for _, id := range ids {
		if !validUUID(id) {
			return false
		}
	}
	return true
}

func orderBy(ordering []core.DBOrdering, dflt string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + dflt
	}
	q := " ORDER BY "
	for i, ord := range ordering {
		if i > 0 {
			q += ", "
		}
		q += ord.String()
	}
	return q
}
