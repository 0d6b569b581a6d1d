package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/user"
)

type attendanceApi struct {
	usrSvc   user.Service
	svc      attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	limitAI echo.MiddlewareFunc,
	usrSvc user.Service,
	svc attendance.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.mark, staffMiddleware())
	ag.GET("/:studentID", api.history, selfOrStaffMiddleware("studentID"))
	ag.POST("/:studentID/analyze", api.analyze, staffMiddleware(), limitAI)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkDay
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkDay")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	records, err := api.svc.Mark(ctx.Request().Context(), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	records, err := api.svc.History(ctx.Request().Context(), ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "getting attendance history")
	}
	return ctx.JSON(http.StatusOK, HistoryResponse{Records: records, Summary: attendance.Summarize(records)})
}

func (api *attendanceApi) analyze(ctx echo.Context) error {
	rep, err := api.svc.Analyze(ctx.Request().Context(), ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "analyzing attendance")
	}
	return ctx.JSON(http.StatusOK, rep)
}

type HistoryResponse struct {
	Records []attendance.Record `json:"records"`
	Summary attendance.Summary  `json:"summary"`
}
