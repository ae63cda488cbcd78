package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core/location"
)

type locationAPI struct {
	repo location.Repository
}

func registerLocationAPI(g *echo.Group, repo location.Repository) {
	api := locationAPI{repo: repo}
	g.GET("/cities", api.queryCities)
}

func (api *locationAPI) queryCities(ctx echo.Context) error {
	filter := new(location.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []location.City{})
	}
	filter.Clean()

	cities, err := api.repo.QueryCities(ctx.Request().Context(), filter)
	if err != nil {
		return failed("Failed to list cities", errors.Wrap(err, "querying cities"))
	}
	return ctx.JSON(http.StatusOK, cities)
}
