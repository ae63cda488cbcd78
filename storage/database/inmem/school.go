package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateAddress(_ context.Context, addr school.Address) (school.Address, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	addr.ID = uuid.New().String()
	addr.City = nil
	repo.db.address.table[addr.ID] = addr
	return addr, nil
}

func (repo *schoolRepository) GetAddress(_ context.Context, id string) (school.Address, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if addr, ok := repo.db.address.table[id]; ok {
		return addr, nil
	}
	return school.Address{}, school.ErrAddressNotFound
}

func (repo *schoolRepository) UpdateAddress(_ context.Context, addr school.Address) (school.Address, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.address.table[addr.ID]; !ok {
		return school.Address{}, school.ErrAddressNotFound
	}
	addr.City = nil
	repo.db.address.table[addr.ID] = addr
	return addr, nil
}

func (repo *schoolRepository) DeleteAddress(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.address.table[id]; !ok {
		return school.ErrAddressNotFound
	}
	delete(repo.db.address.table, id)
	return nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.address.table[sch.AddressID]; !ok {
		return school.School{}, school.ErrAddressNotFound
	}
	sch.ID = uuid.New().String()
	repo.db.school.table[sch.ID] = copySchool(sch)
	repo.db.member.table[sch.ID] = make(map[string]struct{})
	return repo.load(repo.db.school.table[sch.ID], true), nil
}

// load must be called with the lock held.
func (repo *schoolRepository) load(sch school.School, withUsers bool) school.School {
	sch = copySchool(sch)
	sch.Address = repo.db.address.table[sch.AddressID]
	if withUsers {
		sch.Users = make([]user.User, 0, len(repo.db.member.table[sch.ID]))
		for id := range repo.db.member.table[sch.ID] {
			if usr, ok := repo.db.user.table[id]; ok {
				sch.Users = append(sch.Users, copyUser(usr))
			}
		}
		sort.Slice(sch.Users, func(i, j int) bool { return sch.Users[i].Email < sch.Users[j].Email })
	}
	return sch
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sch, ok := repo.db.school.table[id]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	return repo.load(sch, true), nil
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	schools := make([]school.School, 0, len(repo.db.school.table))
	for _, sch := range repo.db.school.table {
		if filter != nil {
			if filter.Search != "" && !matchesAny(filter.Search, sch.Name) {
				continue
			}
			if filter.IsATL != nil && sch.IsATL != *filter.IsATL {
				continue
			}
			if filter.PaidSubscription != nil && sch.PaidSubscription != *filter.PaidSubscription {
				continue
			}
			if filter.CityID != 0 && repo.db.address.table[sch.AddressID].CityID != filter.CityID {
				continue
			}
		}
		schools = append(schools, repo.load(sch, false))
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(schools, func(i, j int) bool {
		return lessBy(ordering, func(field string) int {
			a, b := schools[i], schools[j]
			switch field {
			case "name":
				return strings.Compare(a.Name, b.Name)
			case "created_at":
				return compareTimes(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				return compareTimes(a.UpdatedAt, b.UpdatedAt)
			}
			return 0
		})
	})
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.school.table[sch.ID]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	for _, id := range []string{sch.PrincipalID.String, sch.CorrespondentID.String, sch.InChargeID.String} {
		if _, ok := repo.db.user.table[id]; id != "" && !ok {
			return school.School{}, user.ErrNotFound
		}
	}
	sch.AddressID = orig.AddressID
	sch.CreatedAt = orig.CreatedAt
	repo.db.school.table[sch.ID] = copySchool(sch)
	return repo.load(repo.db.school.table[sch.ID], true), nil
}

func (repo *schoolRepository) DeleteSchool(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.school.table[id]; !ok {
		return school.ErrNotFound
	}
	delete(repo.db.school.table, id)
	delete(repo.db.member.table, id)
	return nil
}

func (repo *schoolRepository) LinkUsers(_ context.Context, schoolID string, userIDs ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	members, ok := repo.db.member.table[schoolID]
	if !ok {
		return school.ErrNotFound
	}
	for _, id := range userIDs {
		if _, ok := repo.db.user.table[id]; !ok {
			return user.ErrNotFound
		}
		members[id] = struct{}{}
	}
	return nil
}

func (repo *schoolRepository) UnlinkUsers(_ context.Context, schoolID string, userIDs ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	members, ok := repo.db.member.table[schoolID]
	if !ok {
		return school.ErrNotFound
	}
	for _, id := range userIDs {
		delete(members, id)
	}
	return nil
}
