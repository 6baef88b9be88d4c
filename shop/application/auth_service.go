package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dfryer1193/storefront/shared/auth"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const invalidCredentials = "Invalid email or password"

// Credentials is what a client sends to register or log in
type Credentials struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
}

// Session is an authenticated user together with their access token
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type AuthService struct {
	users    domain.UserRepository
	tokens   *auth.TokenManager
	validate *validator.Validate
}

func NewAuthService(users domain.UserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register creates an account and logs it in
func (s *AuthService) Register(ctx context.Context, creds Credentials) (*Session, error) {
	creds.Name = strings.TrimSpace(creds.Name)
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))

	if err := s.check(creds); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return nil, &domain.StorageError{Op: "hash password", Err: err}
	}

	user := &domain.User{
		Name:         creds.Name,
		Email:        creds.Email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, classify("create user", err)
	}

	log.Info().Str("userID", user.ID).Msg("Registered user")
	return s.issue(user)
}

// Login returns the same UnauthorizedError for an unknown email and a wrong password
func (s *AuthService) Login(ctx context.Context, creds Credentials) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	missing := make(map[string]string)
	if email == "" {
		missing["email"] = "is required"
	}
	if creds.Password == "" {
		missing["password"] = "is required"
	}
	if len(missing) > 0 {
		return nil, &domain.ValidationError{Message: "Email and password are required", Fields: missing}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return nil, &domain.UnauthorizedError{Message: invalidCredentials}
	}
	if err != nil {
		return nil, classify("get user", err)
	}

	if !auth.CheckPassword(user.PasswordHash, creds.Password) {
		log.Debug().Str("userID", user.ID).Msg("Rejected login with wrong password")
		return nil, &domain.UnauthorizedError{Message: invalidCredentials}
	}

	return s.issue(user)
}

// Authenticate resolves a bearer token to a user ID
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", &domain.UnauthorizedError{Message: "Invalid or expired token"}
	}
	return claims.Subject, nil
}

// Me loads the user behind an authenticated request
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		// token outlived its account
		return nil, &domain.UnauthorizedError{Message: "Account no longer exists"}
	}
	if err != nil {
		return nil, classify("get user", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, &domain.StorageError{Op: "issue token", Err: err}
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) check(creds Credentials) error {
	err := s.validate.Struct(creds)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domain.StorageError{Op: "validate credentials", Err: err}
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[strings.ToLower(fe.Field())] = describeRule(fe)
	}
	return &domain.ValidationError{Message: "Validation error", Fields: fields}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
