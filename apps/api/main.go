package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/eligue/academy/apps/api/echo"
	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
	"github.com/eligue/academy/services/email"
	"github.com/eligue/academy/services/logger"
	"github.com/eligue/academy/storage/database"
	"github.com/eligue/academy/storage/database/fixtures"
	"github.com/eligue/academy/storage/database/inmem"
	"github.com/eligue/academy/storage/database/sqlx"
)

type repositories struct {
	users    user.Repository
	catalog  catalog.Repository
	progress progress.Repository
	close    func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)

	var mailSvc core.EmailService
	if conf.SendgridApiKey != "" {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	} else {
		mailSvc = emailsvc.NewConsoleService(std, logger, conf)
	}

	// set up DB
	repos, err := setUpRepositories(conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	usrSvc := user.NewService(repos.users, mailSvc)
	catalogSvc := catalog.NewService(repos.catalog)
	progressSvc := progress.NewService(repos.progress, catalogSvc, mailSvc, logger)

	if conf.Database.IsInMemory() {
		data, err := fixtures.Load(context.Background(), repos.users, catalogSvc)
		if err != nil {
			logger.Fatal(fmt.Sprintf("loading demo data: %v", err), err)
		}
		logger.Info(fmt.Sprintf("Demo data loaded : %d users, formation %q", len(data.Users), data.Formation.Title))
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbEngine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		UserSvc:     usrSvc,
		CatalogSvc:  catalogSvc,
		ProgressSvc: progressSvc,
		Validate:    validate,
		Translator:  translator,
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
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories opens the configured storage. Postgres databases are created and migrated when needed.
func setUpRepositories(conf *core.Config, logger core.Logger) (repositories, error) {
	if conf.Database.IsInMemory() {
		db, err := inmemdb.Open()
		if err != nil {
			return repositories{}, err
		}
		logger.Info("Using the in-memory database")
		return repositories{
			users:    inmemdb.NewUserRepository(db),
			catalog:  inmemdb.NewCatalogRepository(db),
			progress: inmemdb.NewProgressRepository(db),
			close:    func() error { return nil },
		}, nil
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Ping(ctx, db.DB); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	logger.Info(fmt.Sprintf("Connected to %s", conf.Database.Address()))
	return sqlxRepositories(db), nil
}

func sqlxRepositories(db *sqlx.DB) repositories {
	return repositories{
		users:    sqlxrepos.NewUserRepository(db),
		catalog:  sqlxrepos.NewCatalogRepository(db),
		progress: sqlxrepos.NewProgressRepository(db),
		close:    db.Close,
	}
}
