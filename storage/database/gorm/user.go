package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	m, err := toUserModel(usr)
	if err != nil {
		return user.User{}, err
	}
	if err = repo.db.conn(ctx).Create(&m).Error; err != nil {
		return user.User{}, trapUniqueErr(err, user.ErrEmailExists, "email", "inserting user")
	}
	return m.user()
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	conn := repo.db.conn(ctx)
	var m userModel
	var err error

	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		err = conn.Where("id = ?", filter.ID).Take(&m).Error
	case filter.Email != "":
		err = conn.Where("email = ?", filter.Email).Take(&m).Error
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, trapNotFoundErr(err, user.ErrNotFound, "finding user")
	}

	usr, err := m.user()
	if err != nil {
		return user.User{}, err
	}
	usr.SchoolIDs = make([]string, 0)
	err = conn.Model(&schoolUserModel{}).
		Where("user_id = ?", usr.ID).
		Order("school_id").
		Pluck("school_id", &usr.SchoolIDs).Error
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user schools")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	conn := repo.db.conn(ctx)
	tx := conn.Model(&userModel{})
	if filter != nil {
		if filter.Search != "" {
			tx = likeAny(tx, filter.Search, "email", "first_name", "last_name")
		}
		if filter.SchoolID != "" {
			if !validUUID(filter.SchoolID) {
				return []user.User{}, nil
			}
			members := conn.Model(&schoolUserModel{}).Select("user_id").Where("school_id = ?", filter.SchoolID)
			tx = tx.Where("id IN (?)", members)
		}
	}

	var ms []userModel
	if err := orderBy(tx, ordering, "created_at DESC").Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromModels(ms)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	m, err := toUserModel(usr)
	if err != nil {
		return user.User{}, err
	}
	res := repo.db.conn(ctx).Model(&m).
		Select("email", "first_name", "last_name", "user_meta_data", "updated_at").
		Updates(&m)
	if res.Error != nil {
		return user.User{}, trapUniqueErr(res.Error, user.ErrEmailExists, "email", "updating user")
	}
	if res.RowsAffected == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) DeleteUser(ctx context.Context, id string) error {
	if !validUUID(id) {
		return user.ErrNotFound
	}
	conn := repo.db.conn(ctx)

	// the schema may lack the cascades of the migrations (sqlite)
	if err := conn.Where("user_id = ?", id).Delete(&schoolUserModel{}).Error; err != nil {
		return errors.Wrap(err, "deleting user memberships")
	}
	for _, col := range []string{"principal_id", "correspondent_id", "in_charge_id"} {
		err := conn.Model(&schoolModel{}).Where(col+" = ?", id).Update(col, nil).Error
		if err != nil {
			return errors.Wrapf(err, "vacating %s", col)
		}
	}

	res := conn.Where("id = ?", id).Delete(&userModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting user")
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}
