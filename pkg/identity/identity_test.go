package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

func TestStaticProvider(t *testing.T) {
	tok := &oauth2.Token{AccessToken: "abc"}
	got, err := StaticProvider{Tok: tok}.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.AccessToken)

	_, err = StaticProvider{}.Token(context.Background(), true)
	assert.ErrorIs(t, err, ErrConsentRequired)

	boom := errors.New("boom")
	_, err = StaticProvider{Err: boom}.Token(context.Background(), true)
	assert.ErrorIs(t, err, boom)
}

func TestOAuthProviderSilentUsesStoredToken(t *testing.T) {
	keyring.MockInit()
	stored := &oauth2.Token{AccessToken: "stored", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, saveToken(stored))

	p := NewOAuthProvider("id", "secret")
	p.openURL = func(string) error {
		t.Fatal("silent request must not open the consent screen")
		return nil
	}

	tok, err := p.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "stored", tok.AccessToken)
}

func TestOAuthProviderSilentWithoutTokenNeedsConsent(t *testing.T) {
	keyring.MockInit()
	p := NewOAuthProvider("id", "secret")
	_, err := p.Token(context.Background(), false)
	assert.ErrorIs(t, err, ErrConsentRequired)
}

func TestOAuthProviderForget(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, saveToken(&oauth2.Token{AccessToken: "x", Expiry: time.Now().Add(time.Hour)}))

	p := NewOAuthProvider("id", "secret")
	require.NoError(t, p.Forget())
	require.NoError(t, p.Forget())

	_, err := p.Token(context.Background(), false)
	assert.ErrorIs(t, err, ErrConsentRequired)
}
