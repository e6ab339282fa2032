package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/googleapi/transport"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"presupuestos/internal/auth"
	"presupuestos/internal/core"
	applog "presupuestos/internal/log"
)

// IdentityProvider talks to the relying-party endpoints with the project's
// web API key.
type IdentityProvider struct {
	svc    *identitytoolkit.Service
	logger *slog.Logger
}

var _ auth.IdentityProvider = (*IdentityProvider)(nil)

// NewIdentityProvider builds the client. Extra options are appended after
// the API key. option.WithHTTPClient bypasses the key option entirely, so a
// custom client must come from APIKeyClient.
func NewIdentityProvider(ctx context.Context, apiKey string, opts ...option.ClientOption) (*IdentityProvider, error) {
	if apiKey == "" {
		return nil, errors.New("missing firebase api key")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create identitytoolkit service: %w", err)
	}
	return &IdentityProvider{svc: svc, logger: slog.Default()}, nil
}

// APIKeyClient returns a copy of base whose requests carry apiKey as the
// key query parameter. A nil base uses http.DefaultClient.
func APIKeyClient(apiKey string, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c := *base
	c.Transport = &transport.APIKey{Key: apiKey, Transport: rt}
	return &c
}

func (p *IdentityProvider) CreateAccount(ctx context.Context, email, password string) (auth.Credentials, error) {
	resp, err := p.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return auth.Credentials{}, mapError(err)
	}

	p.logger.InfoContext(ctx, "Account created",
		applog.FieldComponent, applog.ComponentIdentity,
		applog.FieldUID, resp.LocalId)

	return auth.Credentials{
		User: core.Identity{
			UID:         resp.LocalId,
			Email:       firstNonEmpty(resp.Email, email),
			DisplayName: resp.DisplayName,
		},
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func (p *IdentityProvider) SignIn(ctx context.Context, email, password string) (auth.Credentials, error) {
	resp, err := p.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return auth.Credentials{}, mapError(err)
	}

	return auth.Credentials{
		User: core.Identity{
			UID:         resp.LocalId,
			Email:       firstNonEmpty(resp.Email, email),
			DisplayName: resp.DisplayName,
		},
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// SignOut is local for the hosted provider: ID tokens can't be revoked
// with an API key, they lapse after an hour and the session drops them.
func (p *IdentityProvider) SignOut(ctx context.Context, idToken string) error {
	p.logger.DebugContext(ctx, "Dropping hosted id token",
		applog.FieldComponent, applog.ComponentIdentity)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
