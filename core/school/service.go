package school

import (
	"context"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/user"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound        = errors.New("school not found")
	ErrAddressNotFound = errors.New("address not found")

	errCityNotFound = "city not found"
)

type (
	Repository interface {
		CreateAddress(ctx context.Context, addr Address) (Address, error)
		GetAddress(ctx context.Context, id string) (Address, error)
		UpdateAddress(ctx context.Context, addr Address) (Address, error)
		DeleteAddress(ctx context.Context, id string) error

		// CreateSchool inserts the School row. Address and Users are not written.
		CreateSchool(ctx context.Context, sch School) (School, error)
		// GetSchool loads the School with its Address and Users.
		GetSchool(ctx context.Context, id string) (School, error)
		// QuerySchools applies AND operation on available QueryFilter fields and loads every Address.
		// QueryFilter.Search does a case-insensitive match on School.Name.
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		// UpdateSchool writes the scalar fields and role pointers of the School row.
		UpdateSchool(ctx context.Context, sch School) (School, error)
		// DeleteSchool deletes the School row and its memberships.
		DeleteSchool(ctx context.Context, id string) error

		// LinkUsers adds Users to the School's members. Linking a member again is a no-op.
		LinkUsers(ctx context.Context, schoolID string, userIDs ...string) error
		UnlinkUsers(ctx context.Context, schoolID string, userIDs ...string) error
	}

	// Recorder observes role resolutions once they are committed.
	Recorder interface {
		RecordResolution(role, decision string)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		usrRepo  user.Repository
		locRepo  location.Repository
		mailSvc  core.EmailService
		recorder Recorder
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	usrRepo user.Repository,
	locRepo location.Repository,
	mailSvc core.EmailService,
	recorder Recorder,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrRepo, "usrRepo"),
		vala.IsNotNil(locRepo, "locRepo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(recorder, "recorder"),
	).CheckAndPanic()

	return &Service{
		tx:       tx,
		repo:     repo,
		usrRepo:  usrRepo,
		locRepo:  locRepo,
		mailSvc:  mailSvc,
		recorder: recorder,
	}
}

func (svc *Service) checkCity(ctx context.Context, field string, id int) error {
	if _, err := svc.locRepo.GetCity(ctx, id); err != nil {
		if errors.Cause(err) == location.ErrCityNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: field, Error: errCityNotFound})
		}
		return errors.Wrap(err, "finding city")
	}
	return nil
}

// Create registers a School with its Address and resolves the provided role identities.
func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	var (
		sch School
		res *identityResolver
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := svc.checkCity(ctx, "address.city_id", ns.Address.CityID); err != nil {
			return err
		}
		addr, err := svc.repo.CreateAddress(ctx, ns.Address.address())
		if err != nil {
			return errors.Wrap(err, "creating address")
		}
		if sch, err = svc.repo.CreateSchool(ctx, ns.school(addr)); err != nil {
			return errors.Wrap(err, "creating school")
		}

		res = newIdentityResolver(svc.usrRepo, sch)
		if err = res.resolveAll(ctx, ns.identity); err != nil {
			return err
		}
		return svc.saveRoles(ctx, res.applyTo(sch), res)
	})
	if err != nil {
		return School{}, err
	}

	svc.afterCommit(sch, res)
	return svc.Get(ctx, sch.ID)
}

// Update merges the patch into the School in a single transaction:
// the address first, then the principal, correspondent and in-charge identities, and finally the School row.
// Any failure rolls every write back.
func (svc *Service) Update(ctx context.Context, id string, us UpdateSchool) (School, error) {
	var (
		sch School
		res *identityResolver
	)
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if sch, err = svc.repo.GetSchool(ctx, id); err != nil {
			return errors.Wrap(err, "loading school")
		}

		if us.Address != nil {
			if err = svc.updateAddress(ctx, sch.AddressID, *us.Address); err != nil {
				return errors.Wrap(err, "updating address")
			}
		}

		res = newIdentityResolver(svc.usrRepo, sch)
		if err = res.resolveAll(ctx, us.identity); err != nil {
			return err
		}

		sch = us.ApplyTo(sch)
		sch.UpdatedAt = nowFunc().UTC()
		return svc.saveRoles(ctx, res.applyTo(sch), res)
	})
	if err != nil {
		return School{}, err
	}

	svc.afterCommit(sch, res)
	return svc.Get(ctx, id)
}

// saveRoles writes the School row and syncs the members with the resolved roles.
func (svc *Service) saveRoles(ctx context.Context, sch School, res *identityResolver) error {
	if _, err := svc.repo.UpdateSchool(ctx, sch); err != nil {
		return errors.Wrap(err, "updating school")
	}
	if ids := res.linked(); len(ids) > 0 {
		if err := svc.repo.LinkUsers(ctx, sch.ID, ids...); err != nil {
			return errors.Wrap(err, "linking users")
		}
	}
	if ids := res.disconnected(); len(ids) > 0 {
		if err := svc.repo.UnlinkUsers(ctx, sch.ID, ids...); err != nil {
			return errors.Wrap(err, "unlinking users")
		}
	}
	return nil
}

// updateAddress applies the partial patch to the Address with id.
func (svc *Service) updateAddress(ctx context.Context, id string, ua UpdateAddress) error {
	addr, err := svc.repo.GetAddress(ctx, id)
	if err != nil {
		return err
	}
	if ua.CityID != nil && *ua.CityID != addr.CityID {
		if err = svc.checkCity(ctx, "address.city_id", *ua.CityID); err != nil {
			return err
		}
	}
	_, err = svc.repo.UpdateAddress(ctx, ua.ApplyTo(addr))
	return err
}

// afterCommit records the resolutions and welcomes the Users created for a role.
func (svc *Service) afterCommit(sch School, res *identityResolver) {
	var msgs []*core.EmailMessage
	for _, r := range res.resolutions {
		svc.recorder.RecordResolution(string(r.Role), r.Decision.Kind.String())
	}
	for _, r := range res.created() {
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: r.User.FullName(), Address: r.User.Email}},
			Subject:      "Welcome to " + sch.Name,
			TemplateName: "welcome",
			TemplateData: map[string]string{
				"Name":   r.User.FullName(),
				"Email":  r.User.Email,
				"Role":   r.Role.Title(),
				"School": sch.Name,
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

// Get returns the School with its Address (and city) and Users.
func (svc *Service) Get(ctx context.Context, id string) (School, error) {
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return School{}, err
	}
	if err = svc.loadCities(ctx, []*Address{&sch.Address}); err != nil {
		return School{}, err
	}
	return sch, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error) {
	schools, err := svc.repo.QuerySchools(ctx, filter, core.CleanOrdering(ordering, OrderingFields))
	if err != nil {
		return nil, err
	}
	addrs := make([]*Address, 0, len(schools))
	for i := range schools {
		addrs = append(addrs, &schools[i].Address)
	}
	if err = svc.loadCities(ctx, addrs); err != nil {
		return nil, err
	}
	return schools, nil
}

func (svc *Service) loadCities(ctx context.Context, addrs []*Address) error {
	cities := make(map[int]*location.City)
	for _, addr := range addrs {
		if city, ok := cities[addr.CityID]; ok {
			addr.City = city
			continue
		}
		city, err := svc.locRepo.GetCity(ctx, addr.CityID)
		if err != nil {
			if errors.Cause(err) == location.ErrCityNotFound {
				continue
			}
			return errors.Wrap(err, "finding city")
		}
		cities[addr.CityID] = &city
		addr.City = &city
	}
	return nil
}

// Delete removes the School and then its Address. The Users of the School are kept.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.tx.InTx(ctx, func(ctx context.Context) error {
		sch, err := svc.repo.GetSchool(ctx, id)
		if err != nil {
			return errors.Wrap(err, "loading school")
		}
		if err = svc.repo.DeleteSchool(ctx, id); err != nil {
			return errors.Wrap(err, "deleting school")
		}
		return errors.Wrap(svc.repo.DeleteAddress(ctx, sch.AddressID), "deleting address")
	})
}
