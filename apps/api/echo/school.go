package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/atlportal/backend/core/school"
)

type schoolAPI struct {
	svc      *school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, svc *school.Service, validate *validator.Validate) {
	api := schoolAPI{svc: svc, validate: validate}

	sg := g.Group("/schools")
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

// Handlers

func (api *schoolAPI) query(ctx echo.Context) error {
	filter := new(school.QueryFilter)
	var isATL, paid bool
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		Int("city_id", &filter.CityID).
		Bool("is_ATL", &isATL).
		Bool("paid_subscription", &paid).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters").SetInternal(err)
	}
	if ctx.QueryParam("is_ATL") != "" {
		filter.IsATL = &isATL
	}
	if ctx.QueryParam("paid_subscription") != "" {
		filter.PaidSubscription = &paid
	}
	filter.Clean()
	ordering := newOrdering(school.OrderingFields)
	if err := ordering.Bind(ctx); err != nil {
		return err
	}

	schools, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return failed("Failed to list schools", errors.Wrap(err, "querying schools"))
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolAPI) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return failed("Failed to create school", errors.Wrap(err, "creating school"))
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolAPI) retrieve(ctx echo.Context) error {
	sch, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return failed("Failed to get school", errors.Wrap(err, "finding school"))
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolAPI) update(ctx echo.Context) error {
	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return failed("Failed to update school", errors.Wrap(err, "updating school"))
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolAPI) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return failed("Failed to delete school", errors.Wrap(err, "deleting school"))
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "School deleted successfully"})
}

type MessageResponse struct {
	Message string `json:"message"`
}
