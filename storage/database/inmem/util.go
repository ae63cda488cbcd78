package inmemdb

import (
	"strings"
	"time"

	"github.com/atlportal/backend/core"
)

// matchesAny does a case-insensitive substring match of search on any of vals.
func matchesAny(search string, vals ...string) bool {
	search = strings.ToLower(search)
	for _, v := range vals {
		if strings.Contains(strings.ToLower(v), search) {
			return true
		}
	}
	return false
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// lessBy applies the orderings in turn; cmp compares the two elements on a field.
func lessBy(ordering []core.DBOrdering, cmp func(field string) int) bool {
	for _, ord := range ordering {
		c := cmp(ord.Field)
		if c == 0 {
			continue
		}
		if ord.Ascending {
			return c < 0
		}
		return c > 0
	}
	return false
}
