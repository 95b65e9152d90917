package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eligue/academy/core"
	"github.com/eligue/academy/core/user"
)

const userColumns = `id, first_name, last_name, birth_date, cin, role, email, phone, login_id, password_hash,
	must_change_password, is_active, assigned_formation_ids, created_at, updated_at, last_login`

type userRow struct {
	ID                   int           `db:"id"`
	FirstName            string        `db:"first_name"`
	LastName             string        `db:"last_name"`
	BirthDate            string        `db:"birth_date"`
	CIN                  string        `db:"cin"`
	Role                 string        `db:"role"`
	Email                string        `db:"email"`
	Phone                null.String   `db:"phone"`
	LoginID              string        `db:"login_id"`
	PasswordHash         []byte        `db:"password_hash"`
	MustChangePassword   bool          `db:"must_change_password"`
	IsActive             bool          `db:"is_active"`
	AssignedFormationIDs pq.Int64Array `db:"assigned_formation_ids"`
	CreatedAt            time.Time     `db:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at"`
	LastLogin            null.Time     `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:                   usr.ID,
		FirstName:            usr.FirstName,
		LastName:             usr.LastName,
		BirthDate:            usr.BirthDate,
		CIN:                  usr.CIN,
		Role:                 usr.Role,
		Email:                usr.Email,
		Phone:                null.NewString(usr.Phone, usr.Phone != ""),
		LoginID:              usr.LoginID,
		PasswordHash:         usr.PasswordHash,
		MustChangePassword:   usr.MustChangePassword,
		IsActive:             usr.IsActive,
		AssignedFormationIDs: toInt64s(usr.AssignedFormationIDs),
		CreatedAt:            usr.CreatedAt.UTC(),
		UpdatedAt:            usr.UpdatedAt.UTC(),
		LastLogin:            null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	usr := user.User{
		ID:                   row.ID,
		FirstName:            row.FirstName,
		LastName:             row.LastName,
		BirthDate:            row.BirthDate,
		CIN:                  row.CIN,
		Role:                 row.Role,
		Email:                row.Email,
		Phone:                row.Phone.String,
		LoginID:              row.LoginID,
		PasswordHash:         row.PasswordHash,
		MustChangePassword:   row.MustChangePassword,
		IsActive:             row.IsActive,
		AssignedFormationIDs: toInts(row.AssignedFormationIDs),
		CreatedAt:            row.CreatedAt.UTC(),
		UpdatedAt:            row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

func (repo userRepository) CheckUniqueness(ctx context.Context, loginID, email string, excludedUsers ...user.User) error {
	excluded := make([]int64, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded = append(excluded, int64(u.ID))
	}

	var rows []struct {
		LoginID string `db:"login_id"`
		Email   string `db:"email"`
	}
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT login_id, email FROM users WHERE (login_id = $1 OR email = $2) AND NOT (id = ANY($3))`,
		loginID, email, pq.Int64Array(excluded),
	)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if r.LoginID == loginID {
			return user.ErrLoginIDExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.toRow(usr)
	stmt, err := repo.db.PrepareNamedContext(ctx, `
		INSERT INTO users (first_name, last_name, birth_date, cin, role, email, phone, login_id, password_hash,
			must_change_password, is_active, assigned_formation_ids, created_at, updated_at, last_login)
		VALUES (:first_name, :last_name, :birth_date, :cin, :role, :email, :phone, :login_id, :password_hash,
			:must_change_password, :is_active, :assigned_formation_ids, :created_at, :updated_at, :last_login)
		RETURNING id`)
	if err != nil {
		return user.User{}, errors.Wrap(err, "preparing user insert")
	}
	defer func() { _ = stmt.Close() }()

	if err = stmt.GetContext(ctx, &row.ID, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var row userRow
	var err error
	switch {
	case filter.ID != 0:
		err = repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, filter.ID)
	case filter.LoginIDOrEmail != "":
		err = repo.db.GetContext(ctx, &row,
			`SELECT `+userColumns+` FROM users WHERE login_id = $1 OR email = $1 LIMIT 1`, filter.LoginIDOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	// users with names, login id, email or CIN matching the search keyword
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(first_name ILIKE "+p+" OR last_name ILIKE "+p+" OR login_id ILIKE "+p+
			" OR email ILIKE "+p+" OR cin ILIKE "+p+")")
	}
	if len(filter.Roles) > 0 {
		where = append(where, "role = ANY("+arg(pq.StringArray(filter.Roles))+")")
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = "+arg(*filter.IsActive))
	}

	q := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	// orderings were cleaned by the service
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "id ASC")
	q += " ORDER BY " + strings.Join(orderList, ", ")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.fromRow(r))
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.toRow(usr)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE users SET first_name = :first_name, last_name = :last_name, birth_date = :birth_date, cin = :cin,
			role = :role, email = :email, phone = :phone, login_id = :login_id, password_hash = :password_hash,
			must_change_password = :must_change_password, is_active = :is_active,
			assigned_formation_ids = :assigned_formation_ids, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.fromRow(row), nil
}

// DeleteUsers removes the users. Their progress goes with them (ON DELETE CASCADE).
func (repo userRepository) DeleteUsers(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.Int64Array(toInt64s(ids))); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
