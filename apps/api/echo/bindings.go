package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/atlportal/backend/core"
)

var orderingParam = "ordering"

// Ordering binds the ordering query param (`name,-created_at`) to the orderable fields of a resource.
type Ordering struct {
	Orderings []core.DBOrdering
	allowed   map[string]string // API field -> storage column
}

func newOrdering(allowed map[string]string) *Ordering {
	return &Ordering{allowed: allowed}
}

// Bind parses the ordering param. A repeated field keeps its first direction.
// Unknown fields are reported as a validation error on "ordering".
func (ord *Ordering) Bind(ctx echo.Context) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	var unknown []string
	seen := make(map[string]struct{})
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			continue
		}
		if _, ok := ord.allowed[field]; !ok {
			unknown = append(unknown, field)
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}

	if len(unknown) > 0 {
		return core.NewValidationError(nil, core.FieldError{
			Field: orderingParam,
			Error: "cannot order by " + strings.Join(unknown, ", "),
		})
	}
	return nil
}
