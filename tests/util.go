package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/catalog"
	"github.com/eligue/academy/core/progress"
	"github.com/eligue/academy/core/user"
	"github.com/eligue/academy/services/email"
	"github.com/eligue/academy/services/logger"
	"github.com/eligue/academy/storage/database/inmem"
)

// Password passes the password policy; every user created here has it.
const Password = "Tr4ining!Field"

var (
	confOnce sync.Once
	conf     *core.Config
)

// Config returns the TEST configuration.
func Config() *core.Config {
	confOnce.Do(func() {
		_ = os.Setenv("ENV", "TEST")
		conf = core.NewConfig()
	})
	return conf
}

// Logger returns a logger that neither prints nor reports.
func Logger() core.Logger {
	l := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), Config())
	l.Enable(false)
	return l
}

// Validator returns a validator with every custom validation registered.
func Validator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	user.LoadCommonPasswords(nil)
	return validate, translator
}

// Services is the whole domain wired on an in-memory database.
type Services struct {
	DB       *inmemdb.DB
	Mail     *emailsvc.ConsoleServiceMock
	Logger   core.Logger
	UserRepo user.Repository
	Users    *user.Service
	Catalog  *catalog.Service
	Progress *progress.Service
}

func NewServices(t *testing.T) Services {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	logger := Logger()
	core.ParseEmailTemplates(logger)
	mailSvc := emailsvc.NewConsoleServiceMock(logger, Config())

	usrRepo := inmemdb.NewUserRepository(db)
	catalogSvc := catalog.NewService(inmemdb.NewCatalogRepository(db))
	return Services{
		DB:       db,
		Mail:     mailSvc,
		Logger:   logger,
		UserRepo: usrRepo,
		Users:    user.NewService(usrRepo, mailSvc),
		Catalog:  catalogSvc,
		Progress: progress.NewService(inmemdb.NewProgressRepository(db), catalogSvc, mailSvc, logger),
	}
}

// CreateUser saves an active user straight through the repository.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	loginID, role string,
	isActive bool,
	formationIDs ...int,
) user.User {
	now := time.Now().UTC()
	usr := user.User{
		FirstName:            strings.Title(loginID),
		LastName:             "Test",
		BirthDate:            "1990-01-01",
		CIN:                  strings.ToUpper(loginID),
		Role:                 role,
		Email:                loginID + "@ligue.com",
		LoginID:              loginID,
		IsActive:             isActive,
		AssignedFormationIDs: formationIDs,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if usr.AssignedFormationIDs == nil {
		usr.AssignedFormationIDs = []int{}
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
