package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/user"
)

type gradeApi struct {
	usrSvc   user.Service
	svc      grade.Service
	validate *validator.Validate
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.Service, svc grade.Service, validate *validator.Validate) {
	api := gradeApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	gg := g.Group("/grades", jwt)
	gg.POST("", api.record, staffMiddleware())
	gg.GET("/:studentID", api.list, selfOrStaffMiddleware("studentID"))
}

func (api *gradeApi) record(ctx echo.Context) error {
	var data grade.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	g, err := api.svc.Record(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "recording grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *gradeApi) list(ctx echo.Context) error {
	grades, err := api.svc.List(ctx.Request().Context(), ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "listing grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}
