package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core/user"
)

type userAPI struct {
	svc      *user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, svc *user.Service, validate *validator.Validate) {
	api := userAPI{svc: svc, validate: validate}

	ug := g.Group("/users")
	ug.GET("", api.query)
	ug.POST("", api.upsert, adminMiddleware())
	ug.GET("/:id", api.retrieve)
	ug.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *userAPI) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := newOrdering(user.OrderingFields)
	if err := ordering.Bind(ctx); err != nil {
		return err
	}

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return failed("Failed to list users", errors.Wrap(err, "querying users"))
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

// upsert updates the User owning the email, or creates it.
func (api *userAPI) upsert(ctx echo.Context) error {
	var data user.Identity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Identity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, _, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return failed("Failed to save user", errors.Wrap(err, "upserting user"))
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return failed("Failed to get user", errors.Wrap(err, "finding user by ID"))
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userAPI) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return failed("Failed to delete user", errors.Wrap(err, "deleting user"))
	}
	return ctx.NoContent(http.StatusNoContent)
}
