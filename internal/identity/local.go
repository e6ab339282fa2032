// Package identity is the self-hosted identity provider used by the memory
// and sqlite backends. Passwords are bcrypt hashed, ID tokens are HS256
// JWTs and signing out revokes the token until it expires. Failures carry
// the same auth/* codes as the hosted provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/badoux/checkmail"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"presupuestos/internal/auth"
	"presupuestos/internal/core"
	applog "presupuestos/internal/log"
	"presupuestos/internal/store"
)

const (
	DefaultTokenTTL    = time.Hour
	DefaultMaxAttempts = 5
	DefaultLockout     = 5 * time.Minute
	DefaultIssuer      = "presupuestos"

	minKeyLength = 32
)

var (
	ErrInvalidToken = errors.New("invalid id token")
	ErrRevokedToken = errors.New("id token revoked")
)

// Claims of an ID token. The subject is the uid.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type attempts struct {
	count int
	until time.Time
}

// Provider implements auth.IdentityProvider.
type Provider struct {
	accounts    store.AccountStore
	revocations store.TokenRevocations
	key         []byte
	issuer      string
	ttl         time.Duration
	maxAttempts int
	lockout     time.Duration
	cost        int
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	failures map[string]*attempts
}

var _ auth.IdentityProvider = (*Provider)(nil)

type Option func(*Provider)

func WithTokenTTL(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithLockout rejects sign-ins for window after max consecutive failures.
func WithLockout(max int, window time.Duration) Option {
	return func(p *Provider) {
		if max > 0 && window > 0 {
			p.maxAttempts, p.lockout = max, window
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.cost = cost }
}

func WithIssuer(issuer string) Option {
	return func(p *Provider) {
		if issuer != "" {
			p.issuer = issuer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider signs tokens with signingKey, which must be at least 32 bytes.
func NewProvider(accounts store.AccountStore, revocations store.TokenRevocations, signingKey []byte, opts ...Option) (*Provider, error) {
	if len(signingKey) < minKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minKeyLength)
	}
	p := &Provider{
		accounts:    accounts,
		revocations: revocations,
		key:         append([]byte(nil), signingKey...),
		issuer:      DefaultIssuer,
		ttl:         DefaultTokenTTL,
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
		cost:        bcrypt.DefaultCost,
		now:         time.Now,
		logger:      slog.Default(),
		failures:    map[string]*attempts{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (auth.Credentials, error) {
	email = strings.TrimSpace(email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return auth.Credentials{}, auth.NewError(auth.CodeInvalidEmail, "The email address is badly formatted.")
	}
	if len(password) < core.MinPasswordLength {
		return auth.Credentials{}, auth.NewError(auth.CodeWeakPassword, "Password should be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("hash password: %w", err)
	}

	acct := store.Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    p.now(),
	}
	if err := p.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return auth.Credentials{}, auth.NewError(auth.CodeEmailAlreadyInUse, "The email address is already in use by another account.")
		}
		return auth.Credentials{}, fmt.Errorf("create account: %w", err)
	}

	p.logger.InfoContext(ctx, "Account created",
		applog.FieldComponent, applog.ComponentIdentity,
		applog.FieldUID, acct.UID,
		applog.FieldEmail, email)

	return p.issue(core.Identity{UID: acct.UID, Email: store.NormalizeEmail(email)})
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (auth.Credentials, error) {
	key := store.NormalizeEmail(email)
	if p.locked(key) {
		return auth.Credentials{}, auth.NewError(auth.CodeTooManyRequests,
			"Access to this account has been temporarily disabled due to many failed login attempts.")
	}

	acct, err := p.accounts.AccountByEmail(ctx, key)
	if errors.Is(err, store.ErrAccountNotFound) {
		p.recordFailure(key)
		return auth.Credentials{}, auth.NewError(auth.CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("look up account: %w", err)
	}
	if acct.Disabled {
		return auth.Credentials{}, auth.NewError(auth.CodeUserDisabled, "The user account has been disabled by an administrator.")
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		p.recordFailure(key)
		p.logger.WarnContext(ctx, "Password mismatch",
			applog.FieldComponent, applog.ComponentIdentity,
			applog.FieldUID, acct.UID)
		return auth.Credentials{}, auth.NewError(auth.CodeWrongPassword, "The password is invalid or the user does not have a password.")
	}

	p.clearFailures(key)
	return p.issue(core.Identity{UID: acct.UID, Email: acct.Email})
}

// SignOut revokes idToken until it expires. Empty or already expired
// tokens are a no-op.
func (p *Provider) SignOut(ctx context.Context, idToken string) error {
	if idToken == "" {
		return nil
	}
	claims, err := p.parse(idToken)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.revocations.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	p.logger.InfoContext(ctx, "Token revoked",
		applog.FieldComponent, applog.ComponentIdentity,
		applog.FieldUID, claims.Subject)
	return nil
}

// VerifyToken returns the identity behind a live, unrevoked token.
func (p *Provider) VerifyToken(ctx context.Context, idToken string) (core.Identity, error) {
	claims, err := p.parse(idToken)
	if err != nil {
		return core.Identity{}, err
	}
	revoked, err := p.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return core.Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return core.Identity{}, ErrRevokedToken
	}
	return core.Identity{UID: claims.Subject, Email: claims.Email}, nil
}

func (p *Provider) issue(user core.Identity) (auth.Credentials, error) {
	now := p.now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.issuer,
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("sign id token: %w", err)
	}
	return auth.Credentials{User: user, IDToken: signed}, nil
}

func (p *Provider) parse(idToken string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(idToken, &claims, func(*jwt.Token) (any, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (p *Provider) locked(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.failures[key]
	return a != nil && a.count >= p.maxAttempts && p.now().Before(a.until)
}

func (p *Provider) recordFailure(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	a := p.failures[key]
	if a == nil || !now.Before(a.until) {
		a = &attempts{}
		p.failures[key] = a
	}
	a.count++
	a.until = now.Add(p.lockout)
}

func (p *Provider) clearFailures(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, key)
}
