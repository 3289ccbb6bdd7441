package directory

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mind-engage/usersapi/internal/db"
)

type Store interface {
	ListPositions(ctx context.Context) ([]Position, error)
	PositionExists(ctx context.Context, id int64) (bool, error)
	CreateUser(ctx context.Context, u NewUser) (int64, error)
	SetUserPhoto(ctx context.Context, id int64, url string) error
	DeleteUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
}

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, now: time.Now}
}

func (s *SQLStore) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name FROM positions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Position{}
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) PositionExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM positions WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CreateUser returns ErrConflict when the email or phone is taken.
func (s *SQLStore) CreateUser(ctx context.Context, u NewUser) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (name,email,phone,position_id,registration_timestamp)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		u.Name, u.Email, u.Phone, u.PositionID, s.now().UnixMilli(),
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrConflict
	}
	return id, err
}

func (s *SQLStore) SetUserPhoto(ctx context.Context, id int64, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET photo=$1 WHERE id=$2`, url, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user; it backs out a registration whose photo could
// not be stored.
func (s *SQLStore) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `u.id,u.name,u.email,u.phone,COALESCE(p.name,''),COALESCE(u.position_id,0),COALESCE(u.photo,''),u.registration_timestamp`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Position, &u.PositionID, &u.Photo, &u.RegistrationTimestamp)
	return u, err
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u LEFT JOIN positions p ON p.id=u.position_id WHERE u.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *SQLStore) ListUsers(ctx context.Context, offset, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u LEFT JOIN positions p ON p.id=u.position_id
		 ORDER BY u.id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
