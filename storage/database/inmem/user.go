package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

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

// emailTaken must be called with the lock held.
func (repo *userRepository) emailTaken(email, exclID string) bool {
	for _, usr := range repo.db.user.table {
		if usr.Email == email && usr.ID != exclID {
			return true
		}
	}
	return false
}

// schoolIDs must be called with the lock held.
func (repo *userRepository) schoolIDs(id string) []string {
	ids := make([]string, 0)
	for schID, members := range repo.db.member.table {
		if _, ok := members[id]; ok {
			ids = append(ids, schID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(usr.Email, "") {
		return user.User{}, core.NewConflictError(user.ErrEmailExists, "email")
	}
	usr.ID = uuid.New().String()
	repo.db.user.table[usr.ID] = copyUser(usr)
	return copyUser(usr), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var found *user.User
	if filter.ID != "" {
		if usr, ok := repo.db.user.table[filter.ID]; ok {
			found = &usr
		}
	} else if filter.Email != "" {
		for _, usr := range repo.db.user.table {
			if usr.Email == filter.Email {
				usr := usr
				found = &usr
				break
			}
		}
	}
	if found == nil {
		return user.User{}, user.ErrNotFound
	}
	usr := copyUser(*found)
	usr.SchoolIDs = repo.schoolIDs(usr.ID)
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.user.table))
	for _, usr := range repo.db.user.table {
		if filter != nil {
			if filter.Search != "" && !matchesAny(filter.Search, usr.Email, usr.FirstName, usr.LastName) {
				continue
			}
			if filter.SchoolID != "" {
				if _, ok := repo.db.member.table[filter.SchoolID][usr.ID]; !ok {
					continue
				}
			}
		}
		users = append(users, copyUser(usr))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return lessBy(ordering, func(field string) int {
			a, b := users[i], users[j]
			switch field {
			case "email":
				return strings.Compare(a.Email, b.Email)
			case "first_name":
				return strings.Compare(a.FirstName, b.FirstName)
			case "last_name":
				return strings.Compare(a.LastName, b.LastName)
			case "created_at":
				return compareTimes(a.CreatedAt, b.CreatedAt)
			}
			return 0
		})
	})
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.user.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, core.NewConflictError(user.ErrEmailExists, "email")
	}
	usr.CreatedAt = orig.CreatedAt
	repo.db.user.table[usr.ID] = copyUser(usr)
	return copyUser(usr), nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.user.table[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.user.table, id)
	for _, members := range repo.db.member.table {
		delete(members, id)
	}
	for schID, sch := range repo.db.school.table {
		if sch.PrincipalID.String == id {
			sch.PrincipalID.Valid, sch.PrincipalID.String = false, ""
		}
		if sch.CorrespondentID.String == id {
			sch.CorrespondentID.Valid, sch.CorrespondentID.String = false, ""
		}
		if sch.InChargeID.String == id {
			sch.InChargeID.Valid, sch.InChargeID.String = false, ""
		}
		repo.db.school.table[schID] = sch
	}
	return nil
}
