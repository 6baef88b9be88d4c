package application

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfryer1193/storefront/shared/auth"
	"github.com/dfryer1193/storefront/shared/db/sqlite"
	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/dfryer1193/storefront/shop/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()

	database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: filepath.Join(t.TempDir(), "auth.db")})
	require.NoError(t, database.Connect())
	t.Cleanup(func() { _ = database.Close() })

	tokens, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	return NewAuthService(persistence.NewUserRepository(database.DB()), tokens)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, Credentials{Name: "Ada", Email: " Ada@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ada@example.com", session.User.Email)

	userID, err := svc.Authenticate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, userID)

	login, err := svc.Login(ctx, Credentials{Email: "ADA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	me, err := svc.Me(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.Name)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newAuthService(t)

	tests := []struct {
		name  string
		creds Credentials
		field string
	}{
		{name: "bad email", creds: Credentials{Name: "A", Email: "nope", Password: "secret1"}, field: "email"},
		{name: "short password", creds: Credentials{Name: "A", Email: "a@example.com", Password: "123"}, field: "password"},
		{name: "missing name", creds: Credentials{Email: "a@example.com", Password: "secret1"}, field: "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.creds)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Credentials{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, Credentials{Name: "B", Email: "A@example.com", Password: "secret2"})
	var ce *domain.ConflictError
	assert.ErrorAs(t, err, &ce)
}

func TestAuthService_LoginRejects(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Credentials{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, Credentials{Email: "a@example.com", Password: "wrong-pass"})
	_, unknownEmail := svc.Login(ctx, Credentials{Email: "b@example.com", Password: "secret1"})

	var ue *domain.UnauthorizedError
	require.ErrorAs(t, wrongPassword, &ue)
	require.ErrorAs(t, unknownEmail, &ue)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAuthService_AuthenticateRejectsGarbage(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Authenticate("garbage")
	var ue *domain.UnauthorizedError
	assert.ErrorAs(t, err, &ue)
}

func TestAuthService_MeForDeletedAccount(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Me(context.Background(), "no-such-user")
	var ue *domain.UnauthorizedError
	assert.ErrorAs(t, err, &ue)
}
