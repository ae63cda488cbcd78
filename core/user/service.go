package user

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")

	errFirstNameRequired = "first name is required for a new user"
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		// GetUser finds a User by ID, or else by Email. The User's SchoolIDs are loaded.
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Email, User.FirstName or User.LastName.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUser deletes the User, its school memberships, and vacates the school roles it held.
		DeleteUser(ctx context.Context, id string) error
	}

	Service struct {
		tx   core.Transactor
		repo Repository
	}
)

func NewService(tx core.Transactor, repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &Service{tx: tx, repo: repo}
}

// Upsert updates the User owning idt.Email, or creates it. created reports whether a new User was created.
func (svc *Service) Upsert(ctx context.Context, idt Identity) (usr User, created bool, err error) {
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := svc.repo.GetUser(ctx, GetFilter{Email: idt.Email})
		switch {
		case err == nil:
			usr, err = svc.repo.UpdateUser(ctx, idt.ApplyTo(existing))
			return errors.Wrap(err, "updating user")
		case errors.Cause(err) != ErrNotFound:
			return errors.Wrap(err, "finding user by email")
		}

		nu, err := idt.NewUser("")
		if err != nil {
			return err
		}
		if usr, err = svc.repo.CreateUser(ctx, nu); err != nil {
			return errors.Wrap(err, "creating user")
		}
		created = true
		return nil
	})
	if err != nil {
		return User{}, false, err
	}
	return usr, created, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrdering(ordering, OrderingFields))
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.tx.InTx(ctx, func(ctx context.Context) error {
		return svc.repo.DeleteUser(ctx, id)
	})
}
