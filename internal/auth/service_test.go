package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presupuestos/internal/core"
	"presupuestos/internal/notify"
)

type fakeProvider struct {
	mu        sync.Mutex
	accounts  map[string]fakeAccount
	seq       int
	signedOut []string
	failWith  error
}

type fakeAccount struct {
	uid      string
	password string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: map[string]fakeAccount{}}
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return Credentials{}, p.failWith
	}
	if _, ok := p.accounts[email]; ok {
		return Credentials{}, NewError(CodeEmailAlreadyInUse, "The email address is already in use by another account.")
	}
	p.seq++
	uid := fmt.Sprintf("uid-%d", p.seq)
	p.accounts[email] = fakeAccount{uid: uid, password: password}
	return Credentials{User: core.Identity{UID: uid, Email: email}, IDToken: "tok-" + uid}, nil
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return Credentials{}, p.failWith
	}
	acc, ok := p.accounts[email]
	if !ok {
		return Credentials{}, NewError(CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if acc.password != password {
		return Credentials{}, NewError(CodeWrongPassword, "The password is invalid.")
	}
	return Credentials{User: core.Identity{UID: acc.uid, Email: email}, IDToken: "tok-" + acc.uid}, nil
}

func (p *fakeProvider) SignOut(_ context.Context, idToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signedOut = append(p.signedOut, idToken)
	return nil
}

type fakeProfiles struct {
	mu      sync.Mutex
	docs    map[string]map[string]any
	upserts int
	failErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{docs: map[string]map[string]any{}}
}

func (f *fakeProfiles) Upsert(_ context.Context, id core.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.upserts++
	doc, ok := f.docs[id.UID]
	if !ok {
		doc = map[string]any{}
		f.docs[id.UID] = doc
	}
	doc["uid"] = id.UID
	doc["email"] = id.Email
	if id.DisplayName != "" {
		doc["displayName"] = id.DisplayName
	}
	return nil
}

func (f *fakeProfiles) Get(_ context.Context, uid string) (*core.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[uid]
	if !ok {
		return nil, nil
	}
	id := &core.Identity{UID: doc["uid"].(string), Email: doc["email"].(string)}
	if dn, ok := doc["displayName"].(string); ok {
		id.DisplayName = dn
	}
	return id, nil
}

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeProvider, *fakeProfiles, *notify.Recorder) {
	t.Helper()
	provider := newFakeProvider()
	profiles := newFakeProfiles()
	rec := notify.NewRecorder()
	svc := NewService(provider, profiles, append([]Option{WithSink(rec)}, opts...)...)
	return svc, provider, profiles, rec
}

func TestRegisterThenLoginKeepsUID(t *testing.T) {
	svc, _, profiles, rec := newTestService(t)
	ctx := context.Background()
	cred := core.Credential{Email: "ana@example.com", Password: "ab1234"}

	regSess := NewSession()
	require.NoError(t, svc.Register(ctx, regSess, cred))
	require.True(t, svc.IsAuthenticated(regSess))
	registered := regSess.Current()
	require.NotNil(t, registered)

	loginSess := NewSession()
	require.NoError(t, svc.Login(ctx, loginSess, cred))
	loggedIn := loginSess.Current()
	require.NotNil(t, loggedIn)

	assert.Equal(t, registered.UID, loggedIn.UID)
	assert.Equal(t, 2, profiles.upserts)

	notes := rec.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, NoticeAccountActivated, notes[0])
	assert.Equal(t, NoticeSessionStarted, notes[1])
}

func TestRegisterDuplicateEmailIsClassified(t *testing.T) {
	svc, _, _, rec := newTestService(t)
	ctx := context.Background()
	cred := core.Credential{Email: "ana@example.com", Password: "ab1234"}

	require.NoError(t, svc.Register(ctx, NewSession(), cred))

	sess := NewSession()
	err := svc.Register(ctx, sess, cred)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmailAlreadyInUse))
	assert.False(t, sess.IsAuthenticated())

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.IconError, last.Icon)
	assert.Equal(t, "¡Correo existente!", last.Title)
}

func TestLoginFailureDoesNotMirror(t *testing.T) {
	svc, _, profiles, rec := newTestService(t)
	ctx := context.Background()

	err := svc.Login(ctx, NewSession(), core.Credential{Email: "nadie@example.com", Password: "ab1234"})
	require.Error(t, err)
	assert.Equal(t, CodeUserNotFound, CodeOf(err))
	assert.Equal(t, 0, profiles.upserts)

	last, _ := rec.Last()
	assert.Equal(t, "¡Error de autenticacion!", last.Title)
	assert.Equal(t, "El correo introducido no esta registrado.", last.Text)
}

func TestNetworkFailureIsPresented(t *testing.T) {
	svc, provider, _, rec := newTestService(t)
	provider.failWith = NetworkError(errors.New("dial tcp: connection refused"))

	err := svc.Login(context.Background(), NewSession(), core.Credential{Email: "a@b.com", Password: "ab1234"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetworkRequestFailed))

	last, _ := rec.Last()
	assert.Equal(t, "¡Error de red!", last.Title)
}

func TestMirrorFailureRevokesProviderSession(t *testing.T) {
	svc, provider, profiles, rec := newTestService(t)
	profiles.failErr = errors.New("disk full")
	sess := NewSession()

	err := svc.Register(context.Background(), sess, core.Credential{Email: "a@b.com", Password: "ab1234"})
	require.Error(t, err)
	assert.True(t, IsMirrorError(err))
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, []string{"tok-uid-1"}, provider.signedOut)

	last, _ := rec.Last()
	assert.Equal(t, notify.IconError, last.Icon)
	assert.Equal(t, "error", last.Title)
}

func TestMirrorMergeKeepsDisplayName(t *testing.T) {
	svc, _, profiles, _ := newTestService(t)
	ctx := context.Background()
	cred := core.Credential{Email: "ana@example.com", Password: "ab1234"}

	require.NoError(t, svc.Register(ctx, NewSession(), cred))
	profiles.docs["uid-1"]["displayName"] = "Ana"
	profiles.docs["uid-1"]["telefono"] = "600000000"

	sess := NewSession()
	require.NoError(t, svc.Login(ctx, sess, cred))

	assert.Equal(t, "Ana", sess.Current().DisplayName)
	assert.Equal(t, "600000000", profiles.docs["uid-1"]["telefono"])
}

func TestLogoutRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	cred := core.Credential{Email: "ana@example.com", Password: "ab1234"}

	t.Run("declined", func(t *testing.T) {
		var routes []string
		svc, provider, _, _ := newTestService(t,
			WithConfirmer(Answer(false)),
			WithNavigator(NavigatorFunc(func(_ context.Context, r string) { routes = append(routes, r) })))
		sess := NewSession()
		require.NoError(t, svc.Register(ctx, sess, cred))

		closed, err := svc.Logout(ctx, sess)
		require.NoError(t, err)
		assert.False(t, closed)
		assert.True(t, sess.IsAuthenticated())
		assert.Empty(t, provider.signedOut)
		assert.Empty(t, routes)
	})

	t.Run("confirmed", func(t *testing.T) {
		var routes []string
		var prompts []Prompt
		svc, provider, profiles, _ := newTestService(t,
			WithConfirmer(ConfirmerFunc(func(_ context.Context, p Prompt) (bool, error) {
				prompts = append(prompts, p)
				return true, nil
			})),
			WithNavigator(NavigatorFunc(func(_ context.Context, r string) { routes = append(routes, r) })))
		sess := NewSession()
		require.NoError(t, svc.Register(ctx, sess, cred))
		upserts := profiles.upserts

		var seen []*core.Identity
		sess.Subscribe(func(u *core.Identity) { seen = append(seen, u) })

		closed, err := svc.Logout(ctx, sess)
		require.NoError(t, err)
		assert.True(t, closed)
		assert.False(t, sess.IsAuthenticated())
		assert.Equal(t, []string{"tok-uid-1"}, provider.signedOut)
		assert.Equal(t, []string{RouteSessionEntry}, routes)
		assert.Equal(t, []Prompt{LogoutPrompt}, prompts)
		assert.Equal(t, upserts, profiles.upserts, "logout must not touch the profile mirror")
		require.Len(t, seen, 1)
		assert.Nil(t, seen[0])
	})

	t.Run("confirmer error", func(t *testing.T) {
		svc, _, _, _ := newTestService(t,
			WithConfirmer(ConfirmerFunc(func(context.Context, Prompt) (bool, error) {
				return false, context.Canceled
			})))
		sess := NewSession()
		require.NoError(t, svc.Register(ctx, sess, cred))

		_, err := svc.Logout(ctx, sess)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, sess.IsAuthenticated())
	})
}

func TestCurrentUserStream(t *testing.T) {
	svc, _, profiles, _ := newTestService(t, WithConfirmer(Answer(true)))
	ctx := context.Background()
	cred := core.Credential{Email: "ana@example.com", Password: "ab1234"}
	require.NoError(t, svc.Register(ctx, NewSession(), cred))
	profiles.docs["uid-1"]["displayName"] = "Ana"

	sess := NewSession()
	var seen []*core.Identity
	unsubscribe := sess.Subscribe(func(u *core.Identity) { seen = append(seen, u) })

	require.NoError(t, svc.Login(ctx, sess, cred))
	_, err := svc.Logout(ctx, sess)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.NotNil(t, seen[0])
	assert.Equal(t, "uid-1", seen[0].UID)
	assert.Equal(t, "Ana", seen[0].DisplayName, "stream is projected through the profile mirror")
	assert.Nil(t, seen[1])

	unsubscribe()
	require.NoError(t, svc.Login(ctx, sess, cred))
	assert.Len(t, seen, 2)

	assert.Equal(t, "Ana", svc.CurrentUser(ctx, sess).DisplayName)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		code  string
		title string
		msg   string
	}{
		{CodeWrongPassword, "¡Error en la contraseña!", "La contraseña introducida es invalida. Asegurate de escribirla correctamente."},
		{CodeUserNotFound, "¡Error de autenticacion!", "El correo introducido no esta registrado."},
		{CodeInvalidEmail, "¡Error de correo!", "El correo introducido es invalido."},
		{CodeNetworkRequestFailed, "¡Error de red!", "No se ha podido conectar al servidor. Compruebe su conexion."},
		{CodeTooManyRequests, "¡Error en el servidor!", "Se han hecho demasiadas peticiones al servidor, por favor espere unos minutos."},
		{CodeEmailAlreadyInUse, "¡Correo existente!", "El correo introducido ya existe, pruebe a iniciar sesion, o compruebe que no se ha equivocado."},
		{CodeWeakPassword, "¡Contraseña debil!", "La contraseña debe tener 6 caracteres o mas."},
		{CodeUserDisabled, "¡Cuenta deshabilitada!", "Porfavor contacta con el administrador para informarse, y hacer las preguntas necesarias."},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := ClassifyError(NewError(tt.code, "provider text"))
			assert.Equal(t, Alert{Title: tt.title, Message: tt.msg}, got)

			wrapped := fmt.Errorf("sign in: %w", NewError(tt.code, ""))
			assert.Equal(t, tt.title, ClassifyError(wrapped).Title)
		})
	}

	t.Run("unknown code falls back", func(t *testing.T) {
		got := ClassifyError(NewError("auth/operation-not-allowed", "Password sign-in is disabled."))
		assert.Equal(t, Alert{Title: "auth/operation-not-allowed", Message: "Password sign-in is disabled."}, got)
	})

	t.Run("plain error", func(t *testing.T) {
		got := ClassifyError(errors.New("boom"))
		assert.Equal(t, Alert{Title: "error", Message: "boom"}, got)
	})

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, Alert{}, ClassifyError(nil))
	})
}

func TestServiceWithCopiesOptions(t *testing.T) {
	svc, _, _, shared := newTestService(t)
	perRequest := notify.NewRecorder()

	scoped := svc.With(WithSink(perRequest))
	scoped.Alert(context.Background(), ErrWeakPassword)

	assert.Empty(t, shared.Notifications())
	require.Len(t, perRequest.Notifications(), 1)
}
