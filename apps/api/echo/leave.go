package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
)

type leaveApi struct {
	usrSvc   user.Service
	svc      leave.Service
	validate *validator.Validate
}

func registerLeaveAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	limitAI echo.MiddlewareFunc,
	usrSvc user.Service,
	svc leave.Service,
	validate *validator.Validate,
) {
	api := leaveApi{
		usrSvc:   usrSvc,
		svc:      svc,
		validate: validate,
	}

	lg := g.Group("/leave-requests", jwt)
	lg.POST("", api.submit, studentMiddleware())
	lg.GET("/mine", api.listMine, studentMiddleware())
	lg.GET("/pending", api.listPending, staffMiddleware())
	lg.GET("/:id", api.retrieve)
	lg.POST("/:id/analyze", api.analyze, staffMiddleware(), limitAI)
	lg.POST("/:id/chat", api.chat, staffMiddleware(), limitAI)
	lg.POST("/:id/decision", api.decide, staffMiddleware())
}

// Handlers

func (api *leaveApi) submit(ctx echo.Context) error {
	var data leave.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	req, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "submitting leave request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *leaveApi) listMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	reqs, err := api.svc.ListByStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing leave requests")
	}
	return ctx.JSON(http.StatusOK, nonNil(reqs))
}

func (api *leaveApi) listPending(ctx echo.Context) error {
	reqs, err := api.svc.ListPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing pending leave requests")
	}
	return ctx.JSON(http.StatusOK, nonNil(reqs))
}

// retrieve shows a request to staff and to the student who submitted it.
func (api *leaveApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	req, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting leave request")
	}
	if !claims.IsStaff() && req.StudentID != claims.Subject {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *leaveApi) analyze(ctx echo.Context) error {
	req, err := api.svc.Analyze(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "analyzing leave request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *leaveApi) chat(ctx echo.Context) error {
	var data leave.ChatQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChatQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.Chat(ctx.Request().Context(), ctx.Param("id"), data.Question)
	if err != nil {
		return errors.Wrap(err, "chatting about leave request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *leaveApi) decide(ctx echo.Context) error {
	var data leave.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	req, err := api.svc.Decide(ctx.Request().Context(), ctx.Param("id"), data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "deciding leave request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func nonNil(reqs []leave.Request) []leave.Request {
	if reqs == nil {
		return []leave.Request{}
	}
	return reqs
}
