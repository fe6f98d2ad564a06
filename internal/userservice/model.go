package userservice

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sushihentaime/postboard/internal/common"
)

var (
	ErrDuplicateEmail = errors.New("duplicate email")
)

func newUserModel(db *sql.DB, timeout time.Duration) *UserModel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UserModel{db: db, timeout: timeout}
}

func (m *UserModel) insert(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		INSERT INTO users (name, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	args := []any{
		u.Name,
		u.Email,
		u.Password.hash,
		u.Role,
	}

	err := m.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		switch {
		case common.UniqueError(err, "users_email_key"):
			return ErrDuplicateEmail
		default:
			return common.StoreError(err)
		}
	}

	return nil
}

func (m *UserModel) getByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		SELECT id, name, email, password, role, created_at, updated_at
		FROM users
		WHERE email = $1`

	var u User

	err := m.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Name, &u.Email, &u.Password.hash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	return &u, nil
}

// getPrincipal implements principalLookup.
func (m *UserModel) getPrincipal(ctx context.Context, id uuid.UUID) (*Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		SELECT id, name, role
		FROM users
		WHERE id = $1`

	var p Principal

	err := m.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Role)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	return &p, nil
}

func (m *UserModel) getProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error) {
	profiles := make(map[uuid.UUID]Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}

	query := `
		SELECT id, name, email
		FROM users
		WHERE id = ANY($1::uuid[])`

	rows, err := m.db.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, common.StoreError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, err
		}
		profiles[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, common.StoreError(err)
	}

	return profiles, nil
}
