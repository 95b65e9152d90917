package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/eligue/academy/core"
)

// Roles
const (
	RoleArbitre        = "Arbitre"
	RoleEntraineur     = "Entraîneur"
	RoleEmploye        = "Employé"
	RoleFormateur      = "Formateur"
	RoleClub           = "Club"
	RoleAdministrateur = "Administrateur"
)

var (
	// LearnerRoles only see the formations they are assigned to.
	LearnerRoles = []string{RoleArbitre, RoleEntraineur, RoleEmploye, RoleClub}
	// PrivilegedRoles see every formation and have no personal progress.
	PrivilegedRoles = []string{RoleAdministrateur, RoleFormateur}
	AllRoles        = getAllRoles()
)

func getAllRoles() []string {
	all := make([]string, 0, len(LearnerRoles)+len(PrivilegedRoles))
	all = append(all, LearnerRoles...)
	all = append(all, PrivilegedRoles...)
	return all
}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID                   int       `json:"id"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	BirthDate            string    `json:"birth_date"` // YYYY-MM-DD
	CIN                  string    `json:"cin"`
	Role                 string    `json:"role"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone,omitempty"`
	LoginID              string    `json:"login_id"`
	PasswordHash         []byte    `json:"-"`
	MustChangePassword   bool      `json:"must_change_password"`
	IsActive             bool      `json:"is_active"`
	AssignedFormationIDs []int     `json:"assigned_formation_ids"`
	CreatedAt            time.Time `json:"created_at"` // UTC
	UpdatedAt            time.Time `json:"updated_at"` // UTC
	LastLogin            time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) FullName() string {
	return core.CleanString(u.FirstName + " " + u.LastName)
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdministrateur
}

func (u User) IsFormateur() bool {
	return u.Role == RoleFormateur
}

// IsPrivileged is true for roles that see all content and are not gated.
func (u User) IsPrivileged() bool {
	return u.IsAdmin() || u.IsFormateur()
}

// CanManageContent tells whether the user may edit formations, parts, courses & exams.
func (u User) CanManageContent() bool {
	return u.IsPrivileged()
}

func (u User) IsAssignedTo(formationID int) bool {
	return core.ContainsInt(u.AssignedFormationIDs, formationID)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	FirstName            string `json:"first_name" validate:"required,notblank"`
	LastName             string `json:"last_name" validate:"required,notblank"`
	BirthDate            string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	CIN                  string `json:"cin" validate:"required,alphanum"`
	Role                 string `json:"role" validate:"required,role"`
	Email                string `json:"email" validate:"required,email"`
	Phone                string `json:"phone" validate:"omitempty,min=6,max=20"`
	LoginID              string `json:"login_id" validate:"required,min=3,max=64,alphanum_"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirm      string `json:"password_confirm" validate:"required,eqfield=Password"`
	AssignedFormationIDs []int  `json:"assigned_formation_ids"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.CIN = core.CleanString(nu.CIN)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.LoginID = core.CleanString(nu.LoginID, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.AssignedFormationIDs = core.UniqueInts(nu.AssignedFormationIDs)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.LoginID, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty strings and nil values keep the current value.
type UpdateUser struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	BirthDate            string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	CIN                  string `json:"cin" validate:"omitempty,alphanum"`
	Role                 string `json:"role" validate:"omitempty,role"`
	Email                string `json:"email" validate:"omitempty,email"`
	Phone                string `json:"phone" validate:"omitempty,min=6,max=20"`
	LoginID              string `json:"login_id" validate:"omitempty,min=3,max=64,alphanum_"`
	IsActive             *bool  `json:"is_active"`
	AssignedFormationIDs []int  `json:"assigned_formation_ids"`
	Password             string `json:"password" validate:"omitempty"`
	PasswordConfirm      string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	pick := func(val, orig string, lower ...bool) string {
		if v := core.CleanString(val, lower...); v != "" {
			return v
		}
		return orig
	}
	uu.FirstName = pick(uu.FirstName, origUsr.FirstName)
	uu.LastName = pick(uu.LastName, origUsr.LastName)
	uu.BirthDate = pick(uu.BirthDate, origUsr.BirthDate)
	uu.CIN = pick(uu.CIN, origUsr.CIN)
	uu.Role = pick(uu.Role, origUsr.Role)
	uu.Email = pick(uu.Email, origUsr.Email, true /* lower */)
	uu.Phone = pick(uu.Phone, origUsr.Phone)
	uu.LoginID = pick(uu.LoginID, origUsr.LoginID, true /* lower */)
	if uu.AssignedFormationIDs == nil {
		uu.AssignedFormationIDs = origUsr.AssignedFormationIDs
	} else {
		uu.AssignedFormationIDs = core.UniqueInts(uu.AssignedFormationIDs)
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.LoginID, uu.Email, origUsr)
}

// ChangePassword is sent by a user replacing their own password.
type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=NewPassword"`

	usr User
}

func (cp *ChangePassword) Validate(usr User, validate *validator.Validate) error {
	cp.usr = usr
	return validate.Struct(cp)
}

// ForcePasswordChange is sent on first login, when MustChangePassword is set.
type ForcePasswordChange struct {
	NewPassword     string `json:"new_password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=NewPassword"`

	usr User
}

func (fp *ForcePasswordChange) Validate(usr User, validate *validator.Validate) error {
	fp.usr = usr
	return validate.Struct(fp)
}

type GetFilter struct {
	ID             int
	LoginIDOrEmail string
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields are the fields users can be ordered by.
var OrderingFields = []string{"id", "first_name", "last_name", "email", "login_id", "role", "is_active", "created_at", "last_login"}
