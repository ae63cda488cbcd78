package gormrepos

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"

	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
)

var models = []interface{}{
	&countryModel{}, &stateModel{}, &cityModel{},
	&userModel{}, &addressModel{}, &schoolModel{}, &schoolUserModel{},
}

type (
	countryModel struct {
		ID   int    `gorm:"primaryKey"`
		Name string `gorm:"not null;uniqueIndex"`
	}

	stateModel struct {
		ID        int    `gorm:"primaryKey"`
		Name      string `gorm:"not null;uniqueIndex:states_country_id_name_key"`
		CountryID int    `gorm:"not null;uniqueIndex:states_country_id_name_key"`
	}

	cityModel struct {
		ID      int    `gorm:"primaryKey"`
		Name    string `gorm:"not null;uniqueIndex:cities_state_id_name_key"`
		StateID int    `gorm:"not null;uniqueIndex:cities_state_id_name_key"`
	}

	// cityRow is a city read with the names of its state and country.
	cityRow struct {
		ID      int
		Name    string
		StateID int
		State   string
		Country string
	}

	userModel struct {
		ID           string         `gorm:"type:uuid;primaryKey"`
		Email        string         `gorm:"not null;uniqueIndex"`
		FirstName    string         `gorm:"not null;default:''"`
		LastName     string         `gorm:"not null;default:''"`
		UserMetaData datatypes.JSON `gorm:"not null"`
		CreatedAt    time.Time      `gorm:"autoCreateTime:false"`
		UpdatedAt    time.Time      `gorm:"autoUpdateTime:false"`
	}

	addressModel struct {
		ID           string      `gorm:"type:uuid;primaryKey"`
		AddressLine1 string      `gorm:"column:address_line1;not null"`
		AddressLine2 null.String `gorm:"column:address_line2;type:text"`
		Pincode      string      `gorm:"not null"`
		CityID       int         `gorm:"not null"`
	}

	schoolModel struct {
		ID                   string         `gorm:"type:uuid;primaryKey"`
		Name                 string         `gorm:"not null;index"`
		IsATL                bool           `gorm:"column:is_atl;not null"`
		ATLEstablishmentYear null.Int       `gorm:"column:atl_establishment_year;type:integer"`
		AddressID            string         `gorm:"type:uuid;not null;uniqueIndex"`
		PrincipalID          null.String    `gorm:"type:uuid"`
		CorrespondentID      null.String    `gorm:"type:uuid"`
		InChargeID           null.String    `gorm:"type:uuid"`
		Syllabus             datatypes.JSON `gorm:"not null"`
		WebsiteURL           string         `gorm:"column:website_url;not null;default:''"`
		PaidSubscription     bool           `gorm:"not null"`
		SocialLinks          datatypes.JSON `gorm:"not null"`
		CreatedAt            time.Time      `gorm:"autoCreateTime:false"`
		UpdatedAt            time.Time      `gorm:"autoUpdateTime:false"`
	}

	schoolUserModel struct {
		SchoolID string `gorm:"type:uuid;primaryKey"`
		UserID   string `gorm:"type:uuid;primaryKey;index"`
	}
)

func (countryModel) TableName() string    { return "countries" }
func (stateModel) TableName() string      { return "states" }
func (cityModel) TableName() string       { return "cities" }
func (userModel) TableName() string       { return "users" }
func (addressModel) TableName() string    { return "addresses" }
func (schoolModel) TableName() string     { return "schools" }
func (schoolUserModel) TableName() string { return "school_users" }

func (row cityRow) city() location.City {
	return location.City(row)
}

func toUserModel(usr user.User) (userModel, error) {
	md := usr.UserMetaData
	if md == nil {
		md = user.MetaData{}
	}
	data, err := json.Marshal(md)
	if err != nil {
		return userModel{}, errors.Wrap(err, "encoding user_meta_data")
	}
	return userModel{
		ID:           usr.ID,
		Email:        usr.Email,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		UserMetaData: datatypes.JSON(data),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}, nil
}

func (m userModel) user() (user.User, error) {
	usr := user.User{
		ID:        m.ID,
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if len(m.UserMetaData) > 0 {
		if err := json.Unmarshal(m.UserMetaData, &usr.UserMetaData); err != nil {
			return user.User{}, errors.Wrap(err, "decoding user_meta_data")
		}
	}
	if usr.UserMetaData == nil {
		usr.UserMetaData = user.MetaData{}
	}
	return usr, nil
}

func usersFromModels(ms []userModel) ([]user.User, error) {
	users := make([]user.User, 0, len(ms))
	for _, m := range ms {
		usr, err := m.user()
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func toAddressModel(addr school.Address) addressModel {
	return addressModel{
		ID:           addr.ID,
		AddressLine1: addr.AddressLine1,
		AddressLine2: addr.AddressLine2,
		Pincode:      addr.Pincode,
		CityID:       addr.CityID,
	}
}

func (m addressModel) address() school.Address {
	return school.Address{
		ID:           m.ID,
		AddressLine1: m.AddressLine1,
		AddressLine2: m.AddressLine2,
		Pincode:      m.Pincode,
		CityID:       m.CityID,
	}
}

func encodeList(ss []string) (datatypes.JSON, error) {
	if ss == nil {
		ss = []string{}
	}
	data, err := json.Marshal(ss)
	return datatypes.JSON(data), err
}

func decodeList(data datatypes.JSON) ([]string, error) {
	ss := []string{}
	if len(data) == 0 {
		return ss, nil
	}
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, err
	}
	if ss == nil {
		ss = []string{}
	}
	return ss, nil
}

func toSchoolModel(sch school.School) (schoolModel, error) {
	syllabus, err := encodeList(sch.Syllabus)
	if err != nil {
		return schoolModel{}, errors.Wrap(err, "encoding syllabus")
	}
	links, err := encodeList(sch.SocialLinks)
	if err != nil {
		return schoolModel{}, errors.Wrap(err, "encoding social_links")
	}
	return schoolModel{
		ID:                   sch.ID,
		Name:                 sch.Name,
		IsATL:                sch.IsATL,
		ATLEstablishmentYear: sch.ATLEstablishmentYear,
		AddressID:            sch.AddressID,
		PrincipalID:          sch.PrincipalID,
		CorrespondentID:      sch.CorrespondentID,
		InChargeID:           sch.InChargeID,
		Syllabus:             syllabus,
		WebsiteURL:           sch.WebsiteURL,
		PaidSubscription:     sch.PaidSubscription,
		SocialLinks:          links,
		CreatedAt:            sch.CreatedAt.UTC(),
		UpdatedAt:            sch.UpdatedAt.UTC(),
	}, nil
}

func (m schoolModel) school() (school.School, error) {
	sch := school.School{
		ID:                   m.ID,
		Name:                 m.Name,
		IsATL:                m.IsATL,
		ATLEstablishmentYear: m.ATLEstablishmentYear,
		AddressID:            m.AddressID,
		PrincipalID:          m.PrincipalID,
		CorrespondentID:      m.CorrespondentID,
		InChargeID:           m.InChargeID,
		WebsiteURL:           m.WebsiteURL,
		PaidSubscription:     m.PaidSubscription,
		CreatedAt:            m.CreatedAt.UTC(),
		UpdatedAt:            m.UpdatedAt.UTC(),
	}
	var err error
	if sch.Syllabus, err = decodeList(m.Syllabus); err != nil {
		return school.School{}, errors.Wrap(err, "decoding syllabus")
	}
	if sch.SocialLinks, err = decodeList(m.SocialLinks); err != nil {
		return school.School{}, errors.Wrap(err, "decoding social_links")
	}
	return sch, nil
}
