package inmemdb

import (
	"context"
	"sync"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/school"
	"github.com/atlportal/backend/core/user"
)

type (
	txKey struct{}

	// DB is an in-memory store. Transactions are serialized and rolled back by restoring a snapshot.
	DB struct {
		txMu sync.Mutex
		mu   sync.RWMutex

		user     userTable
		school   schoolTable
		address  addressTable
		member   memberTable
		location locationTables
	}

	userTable struct {
		table map[string]user.User
	}

	schoolTable struct {
		table map[string]school.School // without Address and Users
	}

	addressTable struct {
		table map[string]school.Address
	}

	memberTable struct {
		table map[string]map[string]struct{} // {schoolID: {userID}}
	}

	locationTables struct {
		seq       int
		countries map[int]location.Country
		states    map[int]location.State
		cities    map[int]location.City // without State and Country names
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{
		user:    userTable{table: make(map[string]user.User)},
		school:  schoolTable{table: make(map[string]school.School)},
		address: addressTable{table: make(map[string]school.Address)},
		member:  memberTable{table: make(map[string]map[string]struct{})},
		location: locationTables{
			countries: make(map[int]location.Country),
			states:    make(map[int]location.State),
			cities:    make(map[int]location.City),
		},
	}
}

// InTx runs fn in a transaction. A transaction started in fn's ctx joins the running one.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	committed := false
	defer func() {
		if !committed {
			db.restore(snap)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	fresh := Open()
	db.user, db.school, db.address, db.member, db.location = fresh.user, fresh.school, fresh.address, fresh.member, fresh.location
}

type snapshot struct {
	user     userTable
	school   schoolTable
	address  addressTable
	member   memberTable
	location locationTables
}

func (db *DB) snapshot() snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snap := snapshot{
		user:    userTable{table: make(map[string]user.User, len(db.user.table))},
		school:  schoolTable{table: make(map[string]school.School, len(db.school.table))},
		address: addressTable{table: make(map[string]school.Address, len(db.address.table))},
		member:  memberTable{table: make(map[string]map[string]struct{}, len(db.member.table))},
		location: locationTables{
			seq:       db.location.seq,
			countries: make(map[int]location.Country, len(db.location.countries)),
			states:    make(map[int]location.State, len(db.location.states)),
			cities:    make(map[int]location.City, len(db.location.cities)),
		},
	}
	for k, v := range db.user.table {
		snap.user.table[k] = copyUser(v)
	}
	for k, v := range db.school.table {
		snap.school.table[k] = copySchool(v)
	}
	for k, v := range db.address.table {
		snap.address.table[k] = v
	}
	for k, v := range db.member.table {
		ids := make(map[string]struct{}, len(v))
		for id := range v {
			ids[id] = struct{}{}
		}
		snap.member.table[k] = ids
	}
	for k, v := range db.location.countries {
		snap.location.countries[k] = v
	}
	for k, v := range db.location.states {
		snap.location.states[k] = v
	}
	for k, v := range db.location.cities {
		snap.location.cities[k] = v
	}
	return snap
}

func (db *DB) restore(snap snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.user, db.school, db.address, db.member, db.location = snap.user, snap.school, snap.address, snap.member, snap.location
}

func copyUser(usr user.User) user.User {
	if usr.UserMetaData != nil {
		md := make(user.MetaData, len(usr.UserMetaData))
		for k, v := range usr.UserMetaData {
			md[k] = v
		}
		usr.UserMetaData = md
	}
	usr.SchoolIDs = nil
	return usr
}

func copySchool(sch school.School) school.School {
	sch.Syllabus = append([]string{}, sch.Syllabus...)
	sch.SocialLinks = append([]string{}, sch.SocialLinks...)
	sch.Address = school.Address{}
	sch.Users = nil
	return sch
}
