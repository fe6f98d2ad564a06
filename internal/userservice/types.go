package userservice

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sushihentaime/postboard/internal/common"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"

	DefaultTokenTTL time.Duration = 7 * 24 * time.Hour
)

// AnonymousPrincipal is placed in the request context when no Authorization
// header was sent.
var AnonymousPrincipal = Principal{}

type UserService struct {
	m      *UserModel
	mb     common.MessageProducer
	tokens *Verifier
	logger *slog.Logger
}

type UserModel struct {
	db      *sql.DB
	timeout time.Duration
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  Password  `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the public projection of a user attached to blog responses.
type Profile struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Principal is the identity resolved from a bearer token.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

type Password struct {
	Plain string `json:"-"`
	hash  []byte `json:"-"`
}

// AuthToken is a signed access token handed to the client.
type AuthToken struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

type userRegisteredEvent struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
