package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/user"
)

const userColumns = "id, email, first_name, last_name, user_meta_data, created_at, updated_at"

type userRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	UserMetaData types.JSONText `db:"user_meta_data"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func toUserRow(usr user.User) (userRow, error) {
	md := usr.UserMetaData
	if md == nil {
		md = user.MetaData{}
	}
	data, err := json.Marshal(md)
	if err != nil {
		return userRow{}, errors.Wrap(err, "encoding user_meta_data")
	}
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		UserMetaData: types.JSONText(data),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}, nil
}

func (row userRow) user() (user.User, error) {
	usr := user.User{
		ID:        row.ID,
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if err := row.UserMetaData.Unmarshal(&usr.UserMetaData); err != nil {
		return user.User{}, errors.Wrap(err, "decoding user_meta_data")
	}
	if usr.UserMetaData == nil {
		usr.UserMetaData = user.MetaData{}
	}
	return usr, nil
}

func usersFromRows(rows []userRow) ([]user.User, error) {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		usr, err := row.user()
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row, err := toUserRow(usr)
	if err != nil {
		return user.User{}, err
	}
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :first_name, :last_name, :user_meta_data, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, row); err != nil {
		return user.User{}, trapUniqueErr(err, user.ErrEmailExists, "email", "inserting user")
	}
	return row.user()
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	exec := repo.db.getExec(ctx)
	var row userRow
	var err error

	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		err = sqlx.GetContext(ctx, exec, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, filter.ID)
	case filter.Email != "":
		err = sqlx.GetContext(ctx, exec, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`, filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}

	usr, err := row.user()
	if err != nil {
		return user.User{}, err
	}
	usr.SchoolIDs = make([]string, 0)
	err = sqlx.SelectContext(ctx, exec, &usr.SchoolIDs,
		`SELECT school_id FROM school_users WHERE user_id = $1 ORDER BY school_id`, usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user schools")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		// users with Email, FirstName or LastName matching the search keyword
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			n := len(args)
			conds = append(conds, fmt.Sprintf("(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", n, n, n))
		}
		if filter.SchoolID != "" {
			if !validUUID(filter.SchoolID) {
				return []user.User{}, nil
			}
			args = append(args, filter.SchoolID)
			conds = append(conds, fmt.Sprintf("id IN (SELECT user_id FROM school_users WHERE school_id = $%d)", len(args)))
		}
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, "created_at DESC")

	var rows []userRow
	if err := sqlx.SelectContext(ctx, repo.db.getExec(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row, err := toUserRow(usr)
	if err != nil {
		return user.User{}, err
	}
	q := `UPDATE users
		SET email = :email, first_name = :first_name, last_name = :last_name,
			user_meta_data = :user_meta_data, updated_at = :updated_at
		WHERE id = :id`
	q, args, err := sqlx.Named(q, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "binding user")
	}
	q = sqlx.Rebind(sqlx.DOLLAR, q) + ` RETURNING ` + userColumns

	var updated userRow
	if err = sqlx.GetContext(ctx, repo.db.getExec(ctx), &updated, q, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, trapUniqueErr(err, user.ErrEmailExists, "email", "updating user")
	}
	return updated.user()
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	if !validUUID(id) {
		return user.ErrNotFound
	}
	// memberships cascade; role pointers are set to NULL
	res, err := repo.db.getExec(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting user")
	} else if n == 0 {
		return user.ErrNotFound
	}
	return nil
}
