package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"presupuestos/internal/auth"
	"presupuestos/internal/store/memory"
)

var testKey = []byte(strings.Repeat("k", 32))

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProvider(t *testing.T, opts ...Option) (*Provider, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	mem := memory.New()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost), WithClock(c.now)}, opts...)
	p, err := NewProvider(mem, mem, testKey, opts...)
	require.NoError(t, err)
	return p, c
}

func TestNewProviderRejectsShortKey(t *testing.T) {
	mem := memory.New()
	_, err := NewProvider(mem, mem, []byte("short"))
	assert.Error(t, err)
}

func TestCreateAccountAndSignIn(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)

	created, err := p.CreateAccount(ctx, "Ana@Example.com", "abc123")
	require.NoError(t, err)
	assert.NotEmpty(t, created.User.UID)
	assert.Equal(t, "ana@example.com", created.User.Email)

	signedIn, err := p.SignIn(ctx, "ana@example.com", "abc123")
	require.NoError(t, err)
	assert.Equal(t, created.User.UID, signedIn.User.UID, "uid is stable across sign-ins")

	user, err := p.VerifyToken(ctx, signedIn.IDToken)
	require.NoError(t, err)
	assert.Equal(t, created.User.UID, user.UID)
}

func TestCreateAccountErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	_, err := p.CreateAccount(ctx, "ana@example.com", "abc123")
	require.NoError(t, err)

	tests := []struct {
		email, password string
		want            error
	}{
		{"ana@example.com", "xyz789", auth.ErrEmailAlreadyInUse},
		{"not-an-email", "abc123", auth.ErrInvalidEmail},
		{"bob@example.com", "a1", auth.ErrWeakPassword},
	}
	for _, tt := range tests {
		_, err := p.CreateAccount(ctx, tt.email, tt.password)
		assert.ErrorIs(t, err, tt.want, tt.email)
	}
}

func TestSignInErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	_, err := p.CreateAccount(ctx, "ana@example.com", "abc123")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "ana@example.com", "wrong1")
	assert.ErrorIs(t, err, auth.ErrWrongPassword)

	_, err = p.SignIn(ctx, "nobody@example.com", "abc123")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestSignInLockout(t *testing.T) {
	ctx := context.Background()
	p, c := newTestProvider(t, WithLockout(3, time.Minute))
	_, err := p.CreateAccount(ctx, "ana@example.com", "abc123")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = p.SignIn(ctx, "ana@example.com", "wrong1")
		require.ErrorIs(t, err, auth.ErrWrongPassword)
	}
	_, err = p.SignIn(ctx, "ana@example.com", "abc123")
	assert.ErrorIs(t, err, auth.ErrTooManyRequests, "correct password is refused while locked")

	c.advance(2 * time.Minute)
	_, err = p.SignIn(ctx, "ana@example.com", "abc123")
	assert.NoError(t, err)
}

func TestSignOutRevokes(t *testing.T) {
	ctx := context.Background()
	p, c := newTestProvider(t, WithTokenTTL(time.Hour))
	creds, err := p.CreateAccount(ctx, "ana@example.com", "abc123")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, creds.IDToken))
	_, err = p.VerifyToken(ctx, creds.IDToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	assert.NoError(t, p.SignOut(ctx, ""), "empty token is a no-op")

	other, err := p.SignIn(ctx, "ana@example.com", "abc123")
	require.NoError(t, err)
	c.advance(2 * time.Hour)
	_, err = p.VerifyToken(ctx, other.IDToken)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
	assert.NoError(t, p.SignOut(ctx, other.IDToken), "expired token needs no revocation")

	assert.ErrorIs(t, p.SignOut(ctx, "garbage"), ErrInvalidToken)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvider(t)
	mem := memory.New()
	other, err := NewProvider(mem, mem, []byte(strings.Repeat("z", 32)), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)

	creds, err := other.CreateAccount(ctx, "ana@example.com", "abc123")
	require.NoError(t, err)
	_, err = p.VerifyToken(ctx, creds.IDToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
