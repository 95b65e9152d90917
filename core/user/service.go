package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/eligue/academy/core"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("user", 0)
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrLoginIDExists      = errors.New("a user with this login id already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrLoginIDExists or ErrEmailExists when another user already uses those values.
		CheckUniqueness(ctx context.Context, loginID, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on names, login id, email or CIN.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsers(ctx context.Context, ids ...int) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc}
}

// CheckUniqueness turns repository uniqueness errors into field validation errors.
func (svc *Service) CheckUniqueness(loginID, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(context.Background(), loginID, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrLoginIDExists:
			field = "login_id"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create saves a new active user that must change the password on first login, then sends a welcome mail.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		FirstName:            nu.FirstName,
		LastName:             nu.LastName,
		BirthDate:            nu.BirthDate,
		CIN:                  nu.CIN,
		Role:                 nu.Role,
		Email:                nu.Email,
		Phone:                nu.Phone,
		LoginID:              nu.LoginID,
		MustChangePassword:   true,
		IsActive:             true,
		AssignedFormationIDs: nu.AssignedFormationIDs,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if usr.AssignedFormationIDs == nil {
		usr.AssignedFormationIDs = []int{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Welcome to eLigue Academy",
		TemplateName: "welcome",
		TemplateData: struct{ Name, LoginID string }{Name: usr.FullName(), LoginID: usr.LoginID},
	})
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

// GetByLoginIDOrEmail finds a user by login id or email, case-insensitively.
func (svc *Service) GetByLoginIDOrEmail(ctx context.Context, username string) (User, error) {
	username = core.CleanString(username, true /* lower */)
	if username == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{LoginIDOrEmail: username})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(ordering, OrderingFields...)...)
}

// Authenticate checks credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, username, pwd string) (User, error) {
	usr, err := svc.GetByLoginIDOrEmail(ctx, username)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by login id or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.FirstName = uu.FirstName
	usr.LastName = uu.LastName
	usr.BirthDate = uu.BirthDate
	usr.CIN = uu.CIN
	usr.Role = uu.Role
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	usr.LoginID = uu.LoginID
	usr.AssignedFormationIDs = uu.AssignedFormationIDs
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
		// a password set by someone else is temporary
		usr.MustChangePassword = true
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ToggleActive flips the user's active flag.
func (svc *Service) ToggleActive(ctx context.Context, id int) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = !usr.IsActive
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// AssignFormations replaces the formations a user follows.
func (svc *Service) AssignFormations(ctx context.Context, id int, formationIDs []int) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.AssignedFormationIDs = core.UniqueInts(formationIDs)
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword replaces the password when current matches.
// A wrong current password is not an error: it reports false.
func (svc *Service) ChangePassword(ctx context.Context, id int, current, newPwd string) (bool, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if err = usr.CheckPassword(current); err != nil {
		return false, nil
	}
	if err = usr.SetPassword(newPwd); err != nil {
		return false, errors.Wrap(err, "setting password")
	}
	usr.MustChangePassword = false
	usr.UpdatedAt = nowFunc().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return false, errors.Wrap(err, "updating user")
	}
	return true, nil
}

// ForceChangePassword sets the password chosen on first login and clears MustChangePassword.
func (svc *Service) ForceChangePassword(ctx context.Context, id int, newPwd string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(newPwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.MustChangePassword = false
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteUsers(ctx, ids...)
}
