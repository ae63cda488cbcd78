package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm/clause"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateAddress(ctx context.Context, addr school.Address) (school.Address, error) {
	addr.ID = uuid.New().String()
	m := toAddressModel(addr)
	if err := repo.db.conn(ctx).Create(&m).Error; err != nil {
		return school.Address{}, errors.Wrap(err, "inserting address")
	}
	return m.address(), nil
}

func (repo *schoolRepository) GetAddress(ctx context.Context, id string) (school.Address, error) {
	if !validUUID(id) {
		return school.Address{}, school.ErrAddressNotFound
	}
	var m addressModel
	if err := repo.db.conn(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return school.Address{}, trapNotFoundErr(err, school.ErrAddressNotFound, "finding address")
	}
	return m.address(), nil
}

func (repo *schoolRepository) UpdateAddress(ctx context.Context, addr school.Address) (school.Address, error) {
	if !validUUID(addr.ID) {
		return school.Address{}, school.ErrAddressNotFound
	}
	m := toAddressModel(addr)
	res := repo.db.conn(ctx).Model(&m).
		Select("address_line1", "address_line2", "pincode", "city_id").
		Updates(&m)
	if res.Error != nil {
		return school.Address{}, errors.Wrap(res.Error, "updating address")
	}
	if res.RowsAffected == 0 {
		return school.Address{}, school.ErrAddressNotFound
	}
	return m.address(), nil
}

func (repo *schoolRepository) DeleteAddress(ctx context.Context, id string) error {
	if !validUUID(id) {
		return school.ErrAddressNotFound
	}
	res := repo.db.conn(ctx).Where("id = ?", id).Delete(&addressModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting address")
	}
	if res.RowsAffected == 0 {
		return school.ErrAddressNotFound
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	m, err := toSchoolModel(sch)
	if err != nil {
		return school.School{}, err
	}
	if err = repo.db.conn(ctx).Create(&m).Error; err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return repo.GetSchool(ctx, sch.ID)
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	if !validUUID(id) {
		return school.School{}, school.ErrNotFound
	}
	conn := repo.db.conn(ctx)

	var m schoolModel
	if err := conn.Where("id = ?", id).Take(&m).Error; err != nil {
		return school.School{}, trapNotFoundErr(err, school.ErrNotFound, "finding school")
	}
	sch, err := m.school()
	if err != nil {
		return school.School{}, err
	}
	if sch.Address, err = repo.GetAddress(ctx, sch.AddressID); err != nil {
		return school.School{}, errors.Wrap(err, "loading address")
	}

	var users []userModel
	err = conn.Model(&userModel{}).
		Joins("JOIN school_users ON school_users.user_id = users.id").
		Where("school_users.school_id = ?", id).
		Order("users.email").
		Find(&users).Error
	if err != nil {
		return school.School{}, errors.Wrap(err, "loading users")
	}
	if sch.Users, err = usersFromModels(users); err != nil {
		return school.School{}, err
	}
	return sch, nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	conn := repo.db.conn(ctx)
	tx := conn.Model(&schoolModel{})
	if filter != nil {
		if filter.Search != "" {
			tx = likeAny(tx, filter.Search, "name")
		}
		if filter.IsATL != nil {
			tx = tx.Where("is_atl = ?", *filter.IsATL)
		}
		if filter.PaidSubscription != nil {
			tx = tx.Where("paid_subscription = ?", *filter.PaidSubscription)
		}
		if filter.CityID != 0 {
			tx = tx.Where("address_id IN (?)", conn.Model(&addressModel{}).Select("id").Where("city_id = ?", filter.CityID))
		}
	}

	var ms []schoolModel
	if err := orderBy(tx, ordering, "name ASC").Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}

	schools := make([]school.School, 0, len(ms))
	addrIDs := make([]string, 0, len(ms))
	for _, m := range ms {
		sch, err := m.school()
		if err != nil {
			return nil, err
		}
		schools = append(schools, sch)
		addrIDs = append(addrIDs, sch.AddressID)
	}
	if len(schools) == 0 {
		return schools, nil
	}

	var addrModels []addressModel
	if err := conn.Where("id IN ?", addrIDs).Find(&addrModels).Error; err != nil {
		return nil, errors.Wrap(err, "loading addresses")
	}
	addrs := make(map[string]school.Address, len(addrModels))
	for _, m := range addrModels {
		addrs[m.ID] = m.address()
	}
	for i := range schools {
		schools[i].Address = addrs[schools[i].AddressID]
	}
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if !validUUID(sch.ID) {
		return school.School{}, school.ErrNotFound
	}
	m, err := toSchoolModel(sch)
	if err != nil {
		return school.School{}, err
	}
	res := repo.db.conn(ctx).Model(&m).
		Select(
			"name", "is_atl", "atl_establishment_year", "principal_id", "correspondent_id", "in_charge_id",
			"syllabus", "website_url", "paid_subscription", "social_links", "updated_at",
		).
		Updates(&m)
	if res.Error != nil {
		return school.School{}, errors.Wrap(res.Error, "updating school")
	}
	if res.RowsAffected == 0 {
		return school.School{}, school.ErrNotFound
	}
	return repo.GetSchool(ctx, sch.ID)
}

func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	if !validUUID(id) {
		return school.ErrNotFound
	}
	conn := repo.db.conn(ctx)
	if err := conn.Where("school_id = ?", id).Delete(&schoolUserModel{}).Error; err != nil {
		return errors.Wrap(err, "deleting memberships")
	}
	res := conn.Where("id = ?", id).Delete(&schoolModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting school")
	}
	if res.RowsAffected == 0 {
		return school.ErrNotFound
	}
	return nil
}

func (repo *schoolRepository) LinkUsers(ctx context.Context, schoolID string, userIDs ...string) error {
	if !validUUID(schoolID) {
		return school.ErrNotFound
	}
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]schoolUserModel, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, schoolUserModel{SchoolID: schoolID, UserID: id})
	}
	err := repo.db.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return errors.Wrap(err, "linking users")
}

func (repo *schoolRepository) UnlinkUsers(ctx context.Context, schoolID string, userIDs ...string) error {
	if !validUUID(schoolID) {
		return school.ErrNotFound
	}
	if len(userIDs) == 0 {
		return nil
	}
	err := repo.db.conn(ctx).
		Where("school_id = ? AND user_id IN ?", schoolID, userIDs).
		Delete(&schoolUserModel{}).Error
	return errors.Wrap(err, "unlinking users")
}
