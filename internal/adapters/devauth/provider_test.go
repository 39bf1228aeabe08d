package devauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsignal/forecast-api/internal/ports"
	"github.com/quantsignal/forecast-api/internal/testutil"
)

func TestProvider_BeginAndExchange(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.TestTime())
	prov, err := NewProvider(Config{
		Subject: "dev-user",
		Email:   "dev@example.com",
		Groups:  []string{"forecast-users"},
		Clock:   clock,
	})
	require.NoError(t, err)

	url, state, nonce, err := prov.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/auth/callback?"), url)
	assert.Len(t, state, 24)
	assert.Len(t, nonce, 24)
	assert.Contains(t, url, "state="+state)

	id, err := prov.Exchange(context.Background(), ports.ExchangeInput{Code: "dev", State: state, Nonce: nonce})
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.Subject)
	assert.Equal(t, "dev@example.com", id.Email)
	assert.Equal(t, []string{"forecast-users"}, id.Groups)
	assert.Equal(t, clock.Now().Add(8*time.Hour), id.ExpiresAt)
}

func TestNewProviderValidation(t *testing.T) {
	_, err := NewProvider(Config{Email: "dev@example.com"})
	require.Error(t, err)
	_, err = NewProvider(Config{Subject: "dev"})
	require.Error(t, err)
}
