package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/storefront/shared/db"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/google/uuid"
)

var _ domain.UserRepository = (*SQLiteUserRepository)(nil)

// SQLiteUserRepository implements domain.UserRepository using SQL database (SQLite)
type SQLiteUserRepository struct {
	db *sql.DB
}

func NewUserRepository(sqlDB *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: sqlDB}
}

const insertUserQuery = `
	INSERT INTO users (id, name, email, password_hash, created_at)
	VALUES (?, ?, ?, ?, ?)
`

// CreateUser assigns an ID and creation time and inserts the user.
// Emails are stored lower-cased.
func (r *SQLiteUserRepository) CreateUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if u.Email == "" {
		return fmt.Errorf("user email cannot be empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	email := strings.ToLower(strings.TrimSpace(u.Email))

	executor := db.GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, insertUserQuery, id, u.Name, email, u.PasswordHash, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &domain.ConflictError{Message: "email already registered"}
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	u.ID = id
	u.Email = email
	u.CreatedAt = now
	return nil
}

const userColumns = `id, name, email, password_hash, created_at`

func (r *SQLiteUserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	return r.getUser(ctx, "id", id)
}

func (r *SQLiteUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("user email cannot be empty")
	}
	return r.getUser(ctx, "email", email)
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, column, value string) (*domain.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + column + " = ?"

	var row userRow
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, value).Scan(
		&row.ID,
		&row.Name,
		&row.Email,
		&row.PasswordHash,
		&row.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "user", ID: value}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return row.toDomain(), nil
}

type userRow struct {
	ID           string       `db:"id"`
	Name         string       `db:"name"`
	Email        string       `db:"email"`
	PasswordHash string       `db:"password_hash"`
	CreatedAt    sql.NullTime `db:"created_at"`
}

func (ur *userRow) toDomain() *domain.User {
	u := &domain.User{
		ID:           ur.ID,
		Name:         ur.Name,
		Email:        ur.Email,
		PasswordHash: ur.PasswordHash,
	}
	if ur.CreatedAt.Valid {
		u.CreatedAt = ur.CreatedAt.Time
	}
	return u
}
