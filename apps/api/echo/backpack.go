package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/user"
)

type backpackApi struct {
	usrSvc   user.Service
	svc      backpack.Service
	validate *validator.Validate
}

func registerBackpackAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	limitAI echo.MiddlewareFunc,
	usrSvc user.Service,
	svc backpack.Service,
	validate *validator.Validate,
) {
	api := backpackApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	hg := g.Group("/homework", jwt)
	hg.GET("", api.listHomework)
	hg.POST("", api.createHomework, staffMiddleware())
	hg.GET("/:id", api.retrieveHomework)
	hg.PUT("/:id", api.updateHomework, staffMiddleware())
	hg.DELETE("/:id", api.destroyHomework, staffMiddleware())

	bg := g.Group("/backpack", jwt, studentMiddleware())
	bg.GET("", api.retrieveBackpack)
	bg.PUT("", api.updateBackpack)
	bg.POST("/check", api.check, limitAI)
}

// Handlers

func (api *backpackApi) listHomework(ctx echo.Context) error {
	hws, err := api.svc.ListHomework(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing homework")
	}
	return ctx.JSON(http.StatusOK, hws)
}

func (api *backpackApi) createHomework(ctx echo.Context) error {
	var data backpack.NewHomework
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHomework")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	hw, err := api.svc.CreateHomework(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "creating homework")
	}
	return ctx.JSON(http.StatusCreated, hw)
}

func (api *backpackApi) retrieveHomework(ctx echo.Context) error {
	hw, err := api.svc.GetHomework(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting homework")
	}
	return ctx.JSON(http.StatusOK, hw)
}

func (api *backpackApi) updateHomework(ctx echo.Context) error {
	var data backpack.NewHomework
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHomework")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	hw, err := api.svc.UpdateHomework(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating homework")
	}
	return ctx.JSON(http.StatusOK, hw)
}

func (api *backpackApi) destroyHomework(ctx echo.Context) error {
	if err := api.svc.DeleteHomework(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting homework")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *backpackApi) retrieveBackpack(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	bp, err := api.svc.GetBackpack(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "getting backpack")
	}
	return ctx.JSON(http.StatusOK, bp)
}

func (api *backpackApi) updateBackpack(ctx echo.Context) error {
	var data backpack.UpdateBackpack
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBackpack")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	bp, err := api.svc.UpdateBackpack(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating backpack")
	}
	return ctx.JSON(http.StatusOK, bp)
}

func (api *backpackApi) check(ctx echo.Context) error {
	var data CheckRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.Check(ctx.Request().Context(), ctxUsr, data.HomeworkID)
	if err != nil {
		return errors.Wrap(err, "checking backpack")
	}
	return ctx.JSON(http.StatusOK, res)
}

type CheckRequest struct {
	HomeworkID string `json:"homework_id" validate:"required,notblank"`
}
