package userservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sushihentaime/postboard/internal/common"
)

var (
	ErrInvalidCredentials = errors.New("invalid authentication credentials")
)

// NewUserService wires the user store, the token verifier and the event
// producer. mb may be nil, in which case no user.registered event is published.
func NewUserService(db *sql.DB, mb common.MessageProducer, secret string, tokenTTL, dbTimeout time.Duration, logger *slog.Logger) *UserService {
	m := newUserModel(db, dbTimeout)
	return &UserService{
		m:      m,
		mb:     mb,
		tokens: NewVerifier(secret, tokenTTL, m),
		logger: logger,
	}
}

// Register creates a user account with the default role, signs an access
// token for it and publishes a user.registered event for the welcome mail.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*User, *AuthToken, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	v := common.NewValidator()
	validateName(v, name)
	validateEmail(v, email)
	validatePassword(v, password)
	if !v.Valid() {
		return nil, nil, v.ValidationError()
	}

	u := User{
		Name:     name,
		Email:    email,
		Password: Password{Plain: password},
		Role:     RoleUser,
	}

	err := u.Password.set(u.Password.Plain)
	if err != nil {
		return nil, nil, err
	}

	err = s.m.insert(ctx, &u)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, nil, common.ValidationError{Errors: map[string]string{"email": "a user with this email address already exists"}}
		default:
			return nil, nil, err
		}
	}

	token, err := s.tokens.Issue(&u)
	if err != nil {
		return nil, nil, err
	}

	s.publishRegistered(ctx, &u)

	return &u, token, nil
}

// Login checks the email/password pair and returns a fresh access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*User, *AuthToken, error) {
	email = strings.TrimSpace(email)

	v := common.NewValidator()
	validateLogin(v, email, password)
	if !v.Valid() {
		return nil, nil, v.ValidationError()
	}

	u, err := s.m.getByEmail(ctx, email)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRecordNotFound):
			return nil, nil, ErrInvalidCredentials
		default:
			return nil, nil, err
		}
	}

	ok, err := u.Password.matches(password)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, nil, err
	}

	return u, token, nil
}

// Authenticate resolves an Authorization header value to a principal.
func (s *UserService) Authenticate(ctx context.Context, header string) (*Principal, error) {
	return s.tokens.Verify(ctx, header)
}

// GetProfiles returns the public projection of every known id. Unknown ids
// are absent from the map.
func (s *UserService) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error) {
	return s.m.getProfiles(ctx, ids)
}

func (s *UserService) publishRegistered(ctx context.Context, u *User) {
	if s.mb == nil {
		return
	}

	data, err := json.Marshal(userRegisteredEvent{Name: u.Name, Email: u.Email})
	if err != nil {
		s.logger.Error("could not marshal user.registered event", slog.String("error", err.Error()))
		return
	}

	err = s.mb.Publish(ctx, data, common.UserRegisteredKey, common.UserExchange)
	if err != nil {
		s.logger.Warn("could not publish user.registered event", slog.String("user_id", u.ID.String()), slog.String("error", err.Error()))
	}
}
