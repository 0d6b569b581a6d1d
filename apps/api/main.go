package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	ut "github.com/go-playground/universal-translator"

	echoapi "github.com/trezcool/smartbackpack/apps/api/echo"
	"github.com/trezcool/smartbackpack/core"
	"github.com/trezcool/smartbackpack/core/attendance"
	"github.com/trezcool/smartbackpack/core/backpack"
	"github.com/trezcool/smartbackpack/core/grade"
	"github.com/trezcool/smartbackpack/core/leave"
	"github.com/trezcool/smartbackpack/core/user"
	emailsvc "github.com/trezcool/smartbackpack/services/email"
	genaisvc "github.com/trezcool/smartbackpack/services/genai"
	"github.com/trezcool/smartbackpack/services/jobs"
	logsvc "github.com/trezcool/smartbackpack/services/logger"
	"github.com/trezcool/smartbackpack/storage"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up storage
	repos, err := storage.Open(ctx, conf, true)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening %s storage: %v", conf.Database.Engine, err), err)
	}
	defer func() {
		if err := repos.Close(context.Background()); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()
	dbLogger.Info(fmt.Sprintf("storage ready : engine %q", repos.Engine))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(logger); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// AI features answer 503 when the assistant cannot be set up
	var (
		bpAssistant    backpack.Assistant
		attAssistant   attendance.Assistant
		leaveAssistant leave.Assistant
	)
	if assistant, err := newAssistant(ctx, conf, translator, logger); err != nil {
		logger.Error(fmt.Sprintf("AI assistant disabled: %v", err), err)
	} else {
		bpAssistant, attAssistant, leaveAssistant = assistant, assistant, assistant
	}

	// set up services
	usrSvc := user.NewService(repos.User, mailSvc, conf)
	attSvc := attendance.NewService(repos.Attendance, usrSvc, attAssistant, mailSvc, logger, conf)
	gradeSvc := grade.NewService(repos.Grade, usrSvc)
	bpSvc := backpack.NewService(repos.Backpack, usrSvc, bpAssistant, logger)
	leaveSvc := leave.NewService(repos.Leave, usrSvc, attSvc, gradeSvc, leaveAssistant, mailSvc, conf)

	// =========================================================================
	// Start Scheduler

	scheduler := jobs.NewScheduler(logger)
	if conf.Attendance.SweepSchedule != "" && attAssistant != nil {
		if err = scheduler.AddAttendanceSweep(conf.Attendance.SweepSchedule, attSvc); err != nil {
			logger.Fatal(fmt.Sprintf("scheduling attendance sweep: %v", err), err)
		}
	}
	scheduler.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := scheduler.Stop(sctx); err != nil {
			logger.Error(fmt.Sprintf("stopping scheduler: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("engine").Set(repos.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Address:       conf.Server.Address,
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		UserSvc:       usrSvc,
		BackpackSvc:   bpSvc,
		AttendanceSvc: attSvc,
		GradeSvc:      gradeSvc,
		LeaveSvc:      leaveSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newAssistant(ctx context.Context, conf *core.Config, translator ut.Translator, logger core.Logger) (*genaisvc.Assistant, error) {
	model, err := genaisvc.NewModel(ctx, conf.AI)
	if err != nil {
		return nil, err
	}
	return genaisvc.New(model, conf.AI, translator, logger)
}
