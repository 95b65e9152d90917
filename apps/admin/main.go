package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
	"github.com/eligue/academy/services/email"
	"github.com/eligue/academy/services/logger"
	"github.com/eligue/academy/storage/database"
	"github.com/eligue/academy/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug)

	if conf.Database.IsInMemory() {
		logger.Fatal("the admin CLI needs postgres (dbEngine=postgres)")
	}

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()
	if err = database.Ping(ctx, db.DB); err != nil {
		logger.Fatal("pinging database", err)
	}

	// set up services
	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.SendgridApiKey != "" {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	} else {
		mailSvc = emailsvc.NewConsoleService(std, logger, conf)
	}
	usrRepo := sqlxrepos.NewUserRepository(db)
	catalogSvc := catalog.NewService(sqlxrepos.NewCatalogRepository(db))

	// start CLI
	cli := commandLine{
		db:          db.DB,
		usrRepo:     usrRepo,
		usrSvc:      user.NewService(usrRepo, mailSvc),
		catalogSvc:  catalogSvc,
		progressSvc: progress.NewService(sqlxrepos.NewProgressRepository(db), catalogSvc, mailSvc, logger),
		validate:    validate,
		logger:      logger,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
