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
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/school"
)

const (
	addressColumns = "id, address_line1, address_line2, pincode, city_id"
	schoolColumns  = "id, name, is_atl, atl_establishment_year, address_id, principal_id, correspondent_id, " +
		"in_charge_id, syllabus, website_url, paid_subscription, social_links, created_at, updated_at"
)

type (
	addressRow struct {
		ID           string      `db:"id"`
		AddressLine1 string      `db:"address_line1"`
		AddressLine2 null.String `db:"address_line2"`
		Pincode      string      `db:"pincode"`
		CityID       int         `db:"city_id"`
	}

	schoolRow struct {
		ID                   string         `db:"id"`
		Name                 string         `db:"name"`
		IsATL                bool           `db:"is_atl"`
		ATLEstablishmentYear null.Int       `db:"atl_establishment_year"`
		AddressID            string         `db:"address_id"`
		PrincipalID          null.String    `db:"principal_id"`
		CorrespondentID      null.String    `db:"correspondent_id"`
		InChargeID           null.String    `db:"in_charge_id"`
		Syllabus             types.JSONText `db:"syllabus"`
		WebsiteURL           string         `db:"website_url"`
		PaidSubscription     bool           `db:"paid_subscription"`
		SocialLinks          types.JSONText `db:"social_links"`
		CreatedAt            time.Time      `db:"created_at"`
		UpdatedAt            time.Time      `db:"updated_at"`
	}
)

func toAddressRow(addr school.Address) addressRow {
	return addressRow{
		ID:           addr.ID,
		AddressLine1: addr.AddressLine1,
		AddressLine2: addr.AddressLine2,
		Pincode:      addr.Pincode,
		CityID:       addr.CityID,
	}
}

func (row addressRow) address() school.Address {
	return school.Address{
		ID:           row.ID,
		AddressLine1: row.AddressLine1,
		AddressLine2: row.AddressLine2,
		Pincode:      row.Pincode,
		CityID:       row.CityID,
	}
}

func toSchoolRow(sch school.School) (schoolRow, error) {
	syllabus, err := json.Marshal(nonNil(sch.Syllabus))
	if err != nil {
		return schoolRow{}, errors.Wrap(err, "encoding syllabus")
	}
	links, err := json.Marshal(nonNil(sch.SocialLinks))
	if err != nil {
		return schoolRow{}, errors.Wrap(err, "encoding social_links")
	}
	return schoolRow{
		ID:                   sch.ID,
		Name:                 sch.Name,
		IsATL:                sch.IsATL,
		ATLEstablishmentYear: sch.ATLEstablishmentYear,
		AddressID:            sch.AddressID,
		PrincipalID:          sch.PrincipalID,
		CorrespondentID:      sch.CorrespondentID,
		InChargeID:           sch.InChargeID,
		Syllabus:             types.JSONText(syllabus),
		WebsiteURL:           sch.WebsiteURL,
		PaidSubscription:     sch.PaidSubscription,
		SocialLinks:          types.JSONText(links),
		CreatedAt:            sch.CreatedAt.UTC(),
		UpdatedAt:            sch.UpdatedAt.UTC(),
	}, nil
}

func (row schoolRow) school() (school.School, error) {
	sch := school.School{
		ID:                   row.ID,
		Name:                 row.Name,
		IsATL:                row.IsATL,
		ATLEstablishmentYear: row.ATLEstablishmentYear,
		AddressID:            row.AddressID,
		PrincipalID:          row.PrincipalID,
		CorrespondentID:      row.CorrespondentID,
		InChargeID:           row.InChargeID,
		WebsiteURL:           row.WebsiteURL,
		PaidSubscription:     row.PaidSubscription,
		CreatedAt:            row.CreatedAt.UTC(),
		UpdatedAt:            row.UpdatedAt.UTC(),
	}
	if err := row.Syllabus.Unmarshal(&sch.Syllabus); err != nil {
		return school.School{}, errors.Wrap(err, "decoding syllabus")
	}
	if err := row.SocialLinks.Unmarshal(&sch.SocialLinks); err != nil {
		return school.School{}, errors.Wrap(err, "decoding social_links")
	}
	sch.Syllabus = nonNil(sch.Syllabus)
	sch.SocialLinks = nonNil(sch.SocialLinks)
	return sch, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateAddress(ctx context.Context, addr school.Address) (school.Address, error) {
	addr.ID = uuid.New().String()
	q := `INSERT INTO addresses (` + addressColumns + `)
		VALUES (:id, :address_line1, :address_line2, :pincode, :city_id)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, toAddressRow(addr)); err != nil {
		return school.Address{}, errors.Wrap(err, "inserting address")
	}
	addr.City = nil
	return addr, nil
}

func (repo *schoolRepository) GetAddress(ctx context.Context, id string) (school.Address, error) {
	if !validUUID(id) {
		return school.Address{}, school.ErrAddressNotFound
	}
	var row addressRow
	err := sqlx.GetContext(ctx, repo.db.getExec(ctx), &row, `SELECT `+addressColumns+` FROM addresses WHERE id = $1`, id)
	if err != nil {
		return school.Address{}, trapNoRowsErr(err, school.ErrAddressNotFound, "finding address")
	}
	return row.address(), nil
}

func (repo *schoolRepository) UpdateAddress(ctx context.Context, addr school.Address) (school.Address, error) {
	if !validUUID(addr.ID) {
		return school.Address{}, school.ErrAddressNotFound
	}
	q := `UPDATE addresses
		SET address_line1 = :address_line1, address_line2 = :address_line2, pincode = :pincode, city_id = :city_id
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, toAddressRow(addr))
	if err != nil {
		return school.Address{}, errors.Wrap(err, "updating address")
	}
	if err = checkAffected(res, school.ErrAddressNotFound); err != nil {
		return school.Address{}, err
	}
	addr.City = nil
	return addr, nil
}

func (repo *schoolRepository) DeleteAddress(ctx context.Context, id string) error {
	if !validUUID(id) {
		return school.ErrAddressNotFound
	}
	res, err := repo.db.getExec(ctx).ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting address")
	}
	return checkAffected(res, school.ErrAddressNotFound)
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	sch.ID = uuid.New().String()
	row, err := toSchoolRow(sch)
	if err != nil {
		return school.School{}, err
	}
	q := `INSERT INTO schools (` + schoolColumns + `)
		VALUES (:id, :name, :is_atl, :atl_establishment_year, :address_id, :principal_id, :correspondent_id,
			:in_charge_id, :syllabus, :website_url, :paid_subscription, :social_links, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, row); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return repo.GetSchool(ctx, sch.ID)
}

func (repo *schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	if !validUUID(id) {
		return school.School{}, school.ErrNotFound
	}
	exec := repo.db.getExec(ctx)

	var row schoolRow
	if err := sqlx.GetContext(ctx, exec, &row, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school")
	}
	sch, err := row.school()
	if err != nil {
		return school.School{}, err
	}
	if sch.Address, err = repo.GetAddress(ctx, sch.AddressID); err != nil {
		return school.School{}, errors.Wrap(err, "loading address")
	}

	var users []userRow
	q := `SELECT u.id, u.email, u.first_name, u.last_name, u.user_meta_data, u.created_at, u.updated_at
		FROM users u JOIN school_users su ON su.user_id = u.id
		WHERE su.school_id = $1
		ORDER BY u.email`
	if err = sqlx.SelectContext(ctx, exec, &users, q, id); err != nil {
		return school.School{}, errors.Wrap(err, "loading users")
	}
	if sch.Users, err = usersFromRows(users); err != nil {
		return school.School{}, err
	}
	return sch, nil
}

func (repo *schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
		}
		if filter.IsATL != nil {
			args = append(args, *filter.IsATL)
			conds = append(conds, fmt.Sprintf("is_atl = $%d", len(args)))
		}
		if filter.PaidSubscription != nil {
			args = append(args, *filter.PaidSubscription)
			conds = append(conds, fmt.Sprintf("paid_subscription = $%d", len(args)))
		}
		if filter.CityID != 0 {
			args = append(args, filter.CityID)
			conds = append(conds, fmt.Sprintf("address_id IN (SELECT id FROM addresses WHERE city_id = $%d)", len(args)))
		}
	}

	q := `SELECT ` + schoolColumns + ` FROM schools`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += orderBy(ordering, "name ASC")

	exec := repo.db.getExec(ctx)
	var rows []schoolRow
	if err := sqlx.SelectContext(ctx, exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}

	schools := make([]school.School, 0, len(rows))
	addrIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		sch, err := row.school()
		if err != nil {
			return nil, err
		}
		schools = append(schools, sch)
		addrIDs = append(addrIDs, sch.AddressID)
	}
	if len(schools) == 0 {
		return schools, nil
	}

	var addrRows []addressRow
	err := sqlx.SelectContext(ctx, exec, &addrRows,
		`SELECT `+addressColumns+` FROM addresses WHERE id = ANY($1::uuid[])`, pq.Array(addrIDs))
	if err != nil {
		return nil, errors.Wrap(err, "loading addresses")
	}
	addrs := make(map[string]school.Address, len(addrRows))
	for _, row := range addrRows {
		addrs[row.ID] = row.address()
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
	row, err := toSchoolRow(sch)
	if err != nil {
		return school.School{}, err
	}
	q := `UPDATE schools
		SET name = :name, is_atl = :is_atl, atl_establishment_year = :atl_establishment_year,
			principal_id = :principal_id, correspondent_id = :correspondent_id, in_charge_id = :in_charge_id,
			syllabus = :syllabus, website_url = :website_url, paid_subscription = :paid_subscription,
			social_links = :social_links, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db.getExec(ctx), q, row)
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if err = checkAffected(res, school.ErrNotFound); err != nil {
		return school.School{}, err
	}
	return repo.GetSchool(ctx, sch.ID)
}

func (repo *schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	if !validUUID(id) {
		return school.ErrNotFound
	}
	// memberships cascade
	res, err := repo.db.getExec(ctx).ExecContext(ctx, `DELETE FROM schools WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return checkAffected(res, school.ErrNotFound)
}

func (repo *schoolRepository) LinkUsers(ctx context.Context, schoolID string, userIDs ...string) error {
	if !validUUID(schoolID) {
		return school.ErrNotFound
	}
	if len(userIDs) == 0 {
		return nil
	}
	if !validUUIDs(userIDs) {
		return errors.New("linking users: invalid user id")
	}
	q := `INSERT INTO school_users (school_id, user_id)
		SELECT $1, uid FROM UNNEST($2::uuid[]) AS uid
		ON CONFLICT DO NOTHING`
	_, err := repo.db.getExec(ctx).ExecContext(ctx, q, schoolID, pq.Array(userIDs))
	return errors.Wrap(err, "linking users")
}

func (repo *schoolRepository) UnlinkUsers(ctx context.Context, schoolID string, userIDs ...string) error {
	if !validUUID(schoolID) {
		return school.ErrNotFound
	}
	if len(userIDs) == 0 || !validUUIDs(userIDs) {
		return nil
	}
	q := `DELETE FROM school_users WHERE school_id = $1 AND user_id = ANY($2::uuid[])`
	_, err := repo.db.getExec(ctx).ExecContext(ctx, q, schoolID, pq.Array(userIDs))
	return errors.Wrap(err, "unlinking users")
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
