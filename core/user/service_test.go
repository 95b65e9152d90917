package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/user"
	"github.com/eligue/academy/tests"
)

const strongPwd = "Gx7!mQz#2Lp"

func validNewUser() user.NewUser {
	return user.NewUser{
		FirstName:       "Amina",
		LastName:        "Benali",
		BirthDate:       "1993-04-12",
		CIN:             "AB123",
		Role:            user.RoleArbitre,
		Email:           "Amina@Ligue.com ",
		LoginID:         " ABenali",
		Password:        strongPwd,
		PasswordConfirm: strongPwd,
	}
}

func fieldTags(err error) map[string]string {
	tags := make(map[string]string)
	switch e := err.(type) {
	case validator.ValidationErrors:
		for _, fe := range e {
			tags[fe.Field()] = fe.Tag()
		}
	case *core.ValidationError:
		for _, fe := range e.Fields {
			tags[fe.Field] = "unique"
		}
	}
	return tags
}

func TestNewUser_Validate(t *testing.T) {
	svcs := testutil.NewServices(t)
	validate, _ := testutil.Validator()
	testutil.CreateUser(t, svcs.UserRepo, "taken", user.RoleClub, true)

	tests := []struct {
		name     string
		edit     func(nu *user.NewUser)
		wantTags map[string]string
	}{
		{name: "valid", edit: func(nu *user.NewUser) {}, wantTags: map[string]string{}},
		{name: "unknown role", edit: func(nu *user.NewUser) { nu.Role = "Supporter" }, wantTags: map[string]string{"role": "role"}},
		{name: "bad birth date", edit: func(nu *user.NewUser) { nu.BirthDate = "12/04/1993" }, wantTags: map[string]string{"birth_date": "datetime"}},
		{name: "bad login id", edit: func(nu *user.NewUser) { nu.LoginID = "a.benali" }, wantTags: map[string]string{"login_id": "alphanum_"}},
		{
			name:     "too short",
			edit:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" },
			wantTags: map[string]string{"password": "pwdminlen"},
		},
		{
			name:     "whitespace",
			edit:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Gx7 mQz#2Lp", "Gx7 mQz#2Lp" },
			wantTags: map[string]string{"password": "pwdnospace"},
		},
		{
			name:     "all numeric",
			edit:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "83920175", "83920175" },
			wantTags: map[string]string{"password": "pwdnotallnum"},
		},
		{
			name:     "similar to login id",
			edit:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "abenali1", "abenali1" },
			wantTags: map[string]string{"password": "pwdtoosim"},
		},
		{
			name:     "common",
			edit:     func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "azerty", "azerty" },
			wantTags: map[string]string{"password": "pwdnocommon"},
		},
		{
			name:     "confirmation mismatch",
			edit:     func(nu *user.NewUser) { nu.PasswordConfirm = strongPwd + "x" },
			wantTags: map[string]string{"password_confirm": "eqfield"},
		},
		{name: "login id taken", edit: func(nu *user.NewUser) { nu.LoginID = "TAKEN" }, wantTags: map[string]string{"login_id": "unique"}},
		{name: "email taken", edit: func(nu *user.NewUser) { nu.Email = "taken@ligue.com" }, wantTags: map[string]string{"email": "unique"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nu := validNewUser()
			tc.edit(&nu)
			err := nu.Validate(validate, svcs.Users)
			assert.Equal(t, tc.wantTags, fieldTags(err))
		})
	}

	t.Run("cleaning", func(t *testing.T) {
		nu := validNewUser()
		require.NoError(t, nu.Validate(validate, svcs.Users))
		assert.Equal(t, "amina@ligue.com", nu.Email)
		assert.Equal(t, "abenali", nu.LoginID)
	})
}

func TestChangePassword_Validate(t *testing.T) {
	validate, _ := testutil.Validator()
	usr := user.User{FirstName: "Amina", LastName: "Benali", LoginID: "abenali", Email: "amina@ligue.com"}

	cp := user.ChangePassword{CurrentPassword: strongPwd, NewPassword: strongPwd, PasswordConfirm: strongPwd}
	assert.Equal(t, map[string]string{"new_password": "pwdunchanged"}, fieldTags(cp.Validate(usr, validate)))

	cp = user.ChangePassword{CurrentPassword: "old-one", NewPassword: strongPwd, PasswordConfirm: strongPwd}
	assert.NoError(t, cp.Validate(usr, validate))

	fp := user.ForcePasswordChange{NewPassword: "abenali", PasswordConfirm: "abenali"}
	assert.Equal(t, map[string]string{"new_password": "pwdtoosim"}, fieldTags(fp.Validate(usr, validate)))
}

func TestService_CreateAndAuthenticate(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	validate, _ := testutil.Validator()
	svcs.Mail.Reset()

	nu := validNewUser()
	require.NoError(t, nu.Validate(validate, svcs.Users))
	usr, err := svcs.Users.Create(ctx, nu)
	require.NoError(t, err)
	assert.True(t, usr.MustChangePassword)
	assert.True(t, usr.IsActive)
	assert.Equal(t, []int{}, usr.AssignedFormationIDs)

	sent := svcs.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "welcome", sent[0].TemplateName)
	assert.Contains(t, sent[0].TextContent, "abenali")

	tests := []struct {
		name     string
		username string
		pwd      string
		wantErr  error
	}{
		{name: "unknown user", username: "nobody", pwd: strongPwd, wantErr: user.ErrInvalidCredentials},
		{name: "wrong password", username: "abenali", pwd: "nope", wantErr: user.ErrInvalidCredentials},
		{name: "login id, any case", username: " ABENALI ", pwd: strongPwd},
		{name: "email", username: "amina@ligue.com", pwd: strongPwd},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svcs.Users.Authenticate(ctx, tc.username, tc.pwd)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.False(t, got.LastLogin.IsZero())
		})
	}

	t.Run("deactivated", func(t *testing.T) {
		_, err := svcs.Users.ToggleActive(ctx, usr.ID)
		require.NoError(t, err)
		_, err = svcs.Users.Authenticate(ctx, "abenali", strongPwd)
		assert.Equal(t, user.ErrAccountDeactivated, err)
	})
}

func TestService_passwords(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, svcs.UserRepo, "learner", user.RoleEntraineur, true)

	ok, err := svcs.Users.ChangePassword(ctx, usr.ID, "wrong", strongPwd)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svcs.Users.ChangePassword(ctx, usr.ID, testutil.Password, strongPwd)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = svcs.Users.Authenticate(ctx, "learner", strongPwd)
	assert.NoError(t, err)

	_, err = svcs.Users.ChangePassword(ctx, 999, "x", "y")
	assert.True(t, core.IsNotFound(err))

	// a password set by an administrator must be changed on next login
	got, err := svcs.Users.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	got, err = svcs.Users.Update(ctx, got, user.UpdateUser{
		FirstName: got.FirstName, LastName: got.LastName, BirthDate: got.BirthDate, CIN: got.CIN,
		Role: got.Role, Email: got.Email, LoginID: got.LoginID, AssignedFormationIDs: got.AssignedFormationIDs,
		Password: "Temp#2024xyz",
	})
	require.NoError(t, err)
	assert.True(t, got.MustChangePassword)

	got, err = svcs.Users.ForceChangePassword(ctx, usr.ID, strongPwd)
	require.NoError(t, err)
	assert.False(t, got.MustChangePassword)
	assert.NoError(t, got.CheckPassword(strongPwd))
}

func TestService_Query(t *testing.T) {
	svcs := testutil.NewServices(t)
	ctx := context.Background()
	arbitre := testutil.CreateUser(t, svcs.UserRepo, "zidane", user.RoleArbitre, true)
	club := testutil.CreateUser(t, svcs.UserRepo, "benzema", user.RoleClub, false)
	admin := testutil.CreateUser(t, svcs.UserRepo, "admin", user.RoleAdministrateur, true)

	bPtr := func(b bool) *bool { return &b }
	ids := func(users []user.User) []int {
		out := make([]int, 0, len(users))
		for _, u := range users {
			out = append(out, u.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   user.QueryFilter
		ordering []core.DBOrdering
		want     []int
	}{
		{name: "everyone", want: []int{arbitre.ID, club.ID, admin.ID}},
		{name: "by role", filter: user.QueryFilter{Roles: []string{user.RoleClub, user.RoleAdministrateur}}, want: []int{club.ID, admin.ID}},
		{name: "active only", filter: user.QueryFilter{IsActive: bPtr(true)}, want: []int{arbitre.ID, admin.ID}},
		{name: "search, any case", filter: user.QueryFilter{Search: " ZID "}, want: []int{arbitre.ID}},
		{name: "ordered by login id", ordering: []core.DBOrdering{{Field: "login_id", Ascending: true}}, want: []int{admin.ID, club.ID, arbitre.ID}},
		{name: "unknown ordering is ignored", ordering: []core.DBOrdering{{Field: "password_hash"}}, want: []int{arbitre.ID, club.ID, admin.ID}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users, err := svcs.Users.Query(ctx, tc.filter, tc.ordering...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(users))
		})
	}

	t.Run("assign formations", func(t *testing.T) {
		got, err := svcs.Users.AssignFormations(ctx, arbitre.ID, []int{2, 1, 2})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 1}, got.AssignedFormationIDs)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svcs.Users.Delete(ctx, club.ID))
		_, err := svcs.Users.GetByID(ctx, club.ID)
		assert.True(t, core.IsNotFound(err))
	})
}
