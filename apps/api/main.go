package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/darasahq/darasa/apps/api/echo"
	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/assessment"
	"github.com/darasahq/darasa/core/billing"
	"github.com/darasahq/darasa/core/booking"
	"github.com/darasahq/darasa/core/certificate"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/org"
	"github.com/darasahq/darasa/core/user"
	calendarsvc "github.com/darasahq/darasa/services/calendar"
	emailsvc "github.com/darasahq/darasa/services/email"
	logsvc "github.com/darasahq/darasa/services/logger"
	paymentsvc "github.com/darasahq/darasa/services/payment"
	"github.com/darasahq/darasa/storage/database"
	gormrepos "github.com/darasahq/darasa/storage/database/gorm"
	sqlxrepos "github.com/darasahq/darasa/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	db, err := setUpDB(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up database: %v", err), err)
		os.Exit(1)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	sdb := sqlx.NewDb(db, conf.Database.Engine)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var gateway billing.Gateway
	if conf.Payment.SecretKey != "" {
		gateway = paymentsvc.NewPaystackGateway(conf)
	} else {
		gateway = paymentsvc.NewDummyGateway()
	}

	// the user, org and access repositories have a gorm-backed alternative
	usrRepo := user.Repository(sqlxrepos.NewUserRepository(sdb))
	orgRepo := org.Repository(sqlxrepos.NewOrgRepository(sdb))
	accessRepo := access.Repository(sqlxrepos.NewAccessRepository(sdb))
	if conf.Database.UseORM {
		gdb, err := gormrepos.Open(conf)
		if err != nil {
			logger.Error(fmt.Sprintf("opening orm connection: %v", err), err)
			os.Exit(1)
		}
		usrRepo = gormrepos.NewUserRepository(gdb)
		orgRepo = gormrepos.NewOrgRepository(gdb)
		accessRepo = gormrepos.NewAccessRepository(gdb)
	}

	usrSvc := user.NewService(conf, usrRepo, mailSvc)
	orgSvc := org.NewService(orgRepo)
	accessSvc := access.NewService(accessRepo, usrSvc)
	courseSvc := course.NewService(sqlxrepos.NewCourseRepository(sdb))
	assessmentSvc := assessment.NewService(sqlxrepos.NewAssessmentRepository(sdb))
	billingSvc := billing.NewService(sqlxrepos.NewBillingRepository(sdb), gateway)
	certificateSvc := certificate.NewService(conf, sqlxrepos.NewCertificateRepository(sdb), courseSvc, usrSvc, mailSvc)
	bookingSvc := booking.NewService(sqlxrepos.NewBookingRepository(sdb))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidation()
	user.RegisterValidators(validate, translator)
	assessment.RegisterValidators(validate, translator)

	if err = accessSvc.SeedPermissions(context.Background()); err != nil {
		logger.Error(fmt.Sprintf("seeding permissions: %v", err), err)
		os.Exit(1)
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			UserSvc:        usrSvc,
			OrgSvc:         orgSvc,
			AccessSvc:      accessSvc,
			CourseSvc:      courseSvc,
			AssessmentSvc:  assessmentSvc,
			BillingSvc:     billingSvc,
			CertificateSvc: certificateSvc,
			BookingSvc:     bookingSvc,
			CalendarTokens: calendarsvc.NewTokenStore(),
		},
	)

	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Addr))
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)
		os.Exit(1)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				os.Exit(1)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
