package school

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atlportal/backend/core/user"
)

// Role is a named User slot on a School.
type Role string

const (
	RolePrincipal     Role = "principal"
	RoleCorrespondent Role = "correspondent"
	RoleInCharge      Role = "in_charge"
)

// resolutionOrder is the order roles are resolved in.
// The principal goes first: the correspondent may reuse it.
var resolutionOrder = []Role{RolePrincipal, RoleCorrespondent, RoleInCharge}

func (r Role) Title() string {
	switch r {
	case RolePrincipal:
		return "principal"
	case RoleCorrespondent:
		return "correspondent"
	case RoleInCharge:
		return "ATL in-charge"
	}
	return string(r)
}

type DecisionKind int

const (
	// DecisionReuse takes the User already resolved for the principal.
	DecisionReuse DecisionKind = iota + 1
	// DecisionUpdateExisting updates the User owning the email in place.
	DecisionUpdateExisting
	// DecisionCreateNew creates a User for an unknown email.
	DecisionCreateNew
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionReuse:
		return "reuse"
	case DecisionUpdateExisting:
		return "update_existing"
	case DecisionCreateNew:
		return "create_new"
	}
	return "unknown"
}

// Decision is the outcome of matching a role Identity against the stored Users.
type Decision struct {
	Kind DecisionKind
	User user.User // the matched User; zero for DecisionCreateNew
}

func Reuse(usr user.User) Decision          { return Decision{Kind: DecisionReuse, User: usr} }
func UpdateExisting(usr user.User) Decision { return Decision{Kind: DecisionUpdateExisting, User: usr} }
func CreateNew() Decision                   { return Decision{Kind: DecisionCreateNew} }

// Resolution records how one role was resolved.
type Resolution struct {
	Role       Role
	Decision   Decision
	User       user.User // the User now occupying the role
	PreviousID string    // the previous occupant, if any
}

// identityResolver resolves the role identities of one School update.
// It must run inside the update's transaction.
type identityResolver struct {
	usrRepo     user.Repository
	school      School // snapshot taken before the update
	resolved    map[Role]user.User
	resolutions []Resolution
}

func newIdentityResolver(usrRepo user.Repository, sch School) *identityResolver {
	return &identityResolver{
		usrRepo:  usrRepo,
		school:   sch,
		resolved: make(map[Role]user.User, len(resolutionOrder)),
	}
}

// occupant returns the User holding role: the one resolved in this update, else the stored one.
func (r *identityResolver) occupant(role Role) (user.User, bool) {
	if usr, ok := r.resolved[role]; ok {
		return usr, true
	}
	id := r.school.roleID(role)
	if !id.Valid {
		return user.User{}, false
	}
	return r.school.user(id.String)
}

// decide matches idt against the principal (for the correspondent only) and then the store.
func (r *identityResolver) decide(ctx context.Context, role Role, idt user.Identity) (Decision, error) {
	if role == RoleCorrespondent {
		if principal, ok := r.occupant(RolePrincipal); ok && principal.Email == idt.Email {
			return Reuse(principal), nil
		}
	}

	usr, err := r.usrRepo.GetUser(ctx, user.GetFilter{Email: idt.Email})
	switch {
	case err == nil:
		return UpdateExisting(usr), nil
	case errors.Cause(err) == user.ErrNotFound:
		return CreateNew(), nil
	default:
		return Decision{}, errors.Wrap(err, "finding user by email")
	}
}

// resolve applies the decision for role. A nil idt leaves the role untouched.
func (r *identityResolver) resolve(ctx context.Context, role Role, idt *user.Identity) error {
	if idt == nil {
		return nil
	}

	dec, err := r.decide(ctx, role, *idt)
	if err != nil {
		return err
	}

	var usr user.User
	switch dec.Kind {
	case DecisionReuse:
		usr = dec.User
	case DecisionUpdateExisting:
		if usr, err = r.usrRepo.UpdateUser(ctx, idt.ApplyTo(dec.User)); err != nil {
			return errors.Wrap(err, "updating user")
		}
	case DecisionCreateNew:
		nu, err := idt.NewUser(string(role) + ".")
		if err != nil {
			return err
		}
		if usr, err = r.usrRepo.CreateUser(ctx, nu); err != nil {
			return errors.Wrap(err, "creating user")
		}
	}

	res := Resolution{Role: role, Decision: dec, User: usr}
	if prev := r.school.roleID(role); prev.Valid {
		res.PreviousID = prev.String
	}
	r.resolved[role] = usr
	r.resolutions = append(r.resolutions, res)
	return nil
}

// resolveAll resolves every role in resolutionOrder.
func (r *identityResolver) resolveAll(ctx context.Context, identity func(Role) *user.Identity) error {
	for _, role := range resolutionOrder {
		if err := r.resolve(ctx, role, identity(role)); err != nil {
			return errors.Wrapf(err, "resolving %s", role)
		}
	}
	return nil
}

// roleID returns the User id occupying role after the update.
func (r *identityResolver) roleID(role Role) null.String {
	if usr, ok := r.resolved[role]; ok {
		return null.StringFrom(usr.ID)
	}
	return r.school.roleID(role)
}

// applyTo sets the role pointers of sch.
func (r *identityResolver) applyTo(sch School) School {
	for _, role := range resolutionOrder {
		sch.setRoleID(role, r.roleID(role))
	}
	return sch
}

// linked returns the Users to connect to the School.
func (r *identityResolver) linked() []string {
	ids := make([]string, 0, len(r.resolutions))
	seen := make(map[string]struct{}, len(r.resolutions))
	for _, res := range r.resolutions {
		if _, ok := seen[res.User.ID]; ok {
			continue
		}
		seen[res.User.ID] = struct{}{}
		ids = append(ids, res.User.ID)
	}
	return ids
}

// disconnected returns the replaced occupants that no longer hold any role of the School.
func (r *identityResolver) disconnected() []string {
	holders := make(map[string]struct{}, len(resolutionOrder))
	for _, role := range resolutionOrder {
		if id := r.roleID(role); id.Valid {
			holders[id.String] = struct{}{}
		}
	}

	var ids []string
	for _, res := range r.resolutions {
		if res.PreviousID == "" || res.PreviousID == res.User.ID {
			continue
		}
		if _, ok := holders[res.PreviousID]; ok {
			continue
		}
		holders[res.PreviousID] = struct{}{} // only once
		ids = append(ids, res.PreviousID)
	}
	return ids
}

// created returns the resolutions which created a User.
func (r *identityResolver) created() []Resolution {
	var created []Resolution
	for _, res := range r.resolutions {
		if res.Decision.Kind == DecisionCreateNew {
			created = append(created, res)
		}
	}
	return created
}
