package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
	"github.com/quantsignal/forecast-api/internal/domain/model"
	"github.com/quantsignal/forecast-api/internal/mocks"
	"github.com/quantsignal/forecast-api/internal/ports"
	"github.com/quantsignal/forecast-api/internal/testutil"
)

type stubProvider struct {
	identity domainauth.Identity
	err      error
	lastIn   ports.ExchangeInput
}

func (p *stubProvider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if p.err != nil {
		return "", "", "", p.err
	}
	return "https://idp.test/auth?redirect=" + in.RedirectURL, "state-1", "nonce-1", nil
}

func (p *stubProvider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	p.lastIn = in
	return p.identity, p.err
}

type memorySessions struct {
	sessions  map[string]domainauth.Session
	deleteErr error
	saveErr   error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]domainauth.Session{}}
}

func (m *memorySessions) Save(_ context.Context, s domainauth.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memorySessions) Get(_ context.Context, id string) (domainauth.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, errors.New("session not found")
	}
	return s, nil
}

func (m *memorySessions) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.sessions, id)
	return nil
}

type groupRoles struct{}

func (groupRoles) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if g == "admins" {
			return domainauth.RoleAdmin
		}
	}
	return domainauth.RoleUser
}

type authFixture struct {
	svc        *AuthService
	provider   *stubProvider
	sessions   *memorySessions
	principals *mocks.MockPrincipalRepository
	clock      *testutil.FakeClock
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	clock := testutil.NewFakeClock(testutil.TestTime())
	f := authFixture{
		provider: &stubProvider{identity: domainauth.Identity{
			Subject:   "sub-1",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Groups:    []string{"admins"},
			ExpiresAt: clock.Now().Add(time.Hour),
		}},
		sessions:   newMemorySessions(),
		principals: mocks.NewMockPrincipalRepository(gomock.NewController(t)),
		clock:      clock,
	}
	logger, _ := newTestLogger()
	svc, err := NewAuthService(AuthServiceOptions{
		Provider:   f.provider,
		Sessions:   f.sessions,
		Roles:      groupRoles{},
		Principals: f.principals,
		Clock:      clock,
		Logger:     logger,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewAuthServiceRequiresDependencies(t *testing.T) {
	_, err := NewAuthService(AuthServiceOptions{})
	require.Error(t, err)
}

func TestBeginLogin(t *testing.T) {
	f := newAuthFixture(t)

	res, err := f.svc.BeginLogin(context.Background(), "http://localhost/callback")
	require.NoError(t, err)
	assert.Contains(t, res.AuthURL, "http://localhost/callback")
	assert.Equal(t, "state-1", res.State)
	assert.Equal(t, "nonce-1", res.Nonce)

	_, err = f.svc.BeginLogin(context.Background(), "")
	require.Error(t, err)

	f.provider.err = errors.New("idp down")
	_, err = f.svc.BeginLogin(context.Background(), "http://localhost/callback")
	require.ErrorContains(t, err, "idp down")
}

func TestCompleteLoginProvisionsPrincipal(t *testing.T) {
	f := newAuthFixture(t)
	f.principals.EXPECT().
		GetOrCreateBySubject(gomock.Any(), "sub-1", "ada@example.com").
		Return(&model.Principal{ID: "owner-1", Subject: "sub-1", IsActive: true}, nil)

	sess, err := f.svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)

	assert.Equal(t, ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"}, f.provider.lastIn)
	assert.Equal(t, "owner-1", sess.OwnerID)
	assert.Equal(t, "sub-1", sess.Subject)
	assert.Equal(t, "Ada Lovelace", sess.Name)
	assert.Equal(t, domainauth.RoleAdmin, sess.Role)
	assert.NotEmpty(t, sess.ID)
	assert.Contains(t, f.sessions.sessions, sess.ID)
}

func TestCompleteLoginValidation(t *testing.T) {
	f := newAuthFixture(t)
	for _, in := range []CompleteLoginInput{
		{State: "s", Nonce: "n"},
		{Code: "c", Nonce: "n"},
		{Code: "c", State: "s"},
	} {
		_, err := f.svc.CompleteLogin(context.Background(), in)
		require.Error(t, err)
	}
	assert.Empty(t, f.sessions.sessions)
}

func TestCompleteLoginRejectsInactivePrincipal(t *testing.T) {
	f := newAuthFixture(t)
	f.principals.EXPECT().
		GetOrCreateBySubject(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&model.Principal{ID: "owner-1", IsActive: false}, nil)

	_, err := f.svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.ErrorIs(t, err, ErrPrincipalInactive)
	assert.Empty(t, f.sessions.sessions)
}

func TestCompleteLoginProvisionFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.principals.EXPECT().
		GetOrCreateBySubject(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("db down"))

	_, err := f.svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.ErrorContains(t, err, "provision principal")
}

func TestGetSessionExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Save(ctx, domainauth.Session{
		ID:        "s1",
		OwnerID:   "owner-1",
		ExpiresAt: f.clock.Now().Add(time.Minute),
	}))

	sess, err := f.svc.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", sess.OwnerID)

	f.clock.Advance(time.Minute)
	_, err = f.svc.GetSession(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.NotContains(t, f.sessions.sessions, "s1")
}

func TestGetSessionExpiredDeleteFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Save(ctx, domainauth.Session{ID: "s1", ExpiresAt: f.clock.Now()}))
	f.sessions.deleteErr = errors.New("redis down")

	_, err := f.svc.GetSession(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorContains(t, err, "redis down")
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Save(ctx, domainauth.Session{ID: "s1"}))

	require.NoError(t, f.svc.Logout(ctx, ""))
	require.NoError(t, f.svc.Logout(ctx, "s1"))
	assert.Empty(t, f.sessions.sessions)
}
