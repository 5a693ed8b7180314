package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	keyringService = "sheetchat"
	keyringUser    = "google-oauth-token"
)

// Scopes requested for the spreadsheet service.
var Scopes = []string{"https://www.googleapis.com/auth/spreadsheets"}

// ErrConsentRequired is returned by a silent token request when no usable
// token is stored and the user has to go through the consent screen.
var ErrConsentRequired = errors.New("user consent required")

// TokenProvider hands out bearer tokens for the spreadsheet service.
// interactive allows the provider to prompt the user for consent.
type TokenProvider interface {
	Token(ctx context.Context, interactive bool) (*oauth2.Token, error)
}

// StaticProvider returns a fixed token or a fixed error.
type StaticProvider struct {
	Tok *oauth2.Token
	Err error
}

func (s StaticProvider) Token(ctx context.Context, interactive bool) (*oauth2.Token, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Tok == nil {
		return nil, ErrConsentRequired
	}
	return s.Tok, nil
}

// OAuthProvider runs the installed-app OAuth flow against Google and keeps
// the resulting token in the OS keyring so later requests stay silent.
type OAuthProvider struct {
	config      oauth2.Config
	openURL     func(string) error
	consentWait time.Duration

	mu  sync.Mutex
	src oauth2.TokenSource
}

func NewOAuthProvider(clientID, clientSecret string) *OAuthProvider {
	return &OAuthProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       Scopes,
		},
		openURL:     browser.OpenURL,
		consentWait: 5 * time.Minute,
	}
}

func (p *OAuthProvider) Token(ctx context.Context, interactive bool) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src == nil {
		stored, err := loadToken()
		if err == nil {
			p.src = p.config.TokenSource(context.Background(), stored)
		} else if !errors.Is(err, keyring.ErrNotFound) {
			log.Debugf("Could not read stored token: %v", err)
		}
	}
	if p.src != nil {
		tok, err := p.src.Token()
		if err == nil {
			if err := saveToken(tok); err != nil {
				log.Warnf("Failed to store refreshed token: %v", err)
			}
			return tok, nil
		}
		log.Debugf("Stored token unusable: %v", err)
		p.src = nil
	}

	if !interactive {
		return nil, ErrConsentRequired
	}

	tok, err := p.consent(ctx)
	if err != nil {
		return nil, err
	}
	if err := saveToken(tok); err != nil {
		log.Warnf("Failed to store token: %v", err)
	}
	p.src = p.config.TokenSource(context.Background(), tok)
	return tok, nil
}

// Forget drops the stored token, forcing consent on the next interactive call.
func (p *OAuthProvider) Forget() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.src = nil
	err := keyring.Delete(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

type callbackResult struct {
	code string
	err  error
}

// consent opens the Google consent screen in the user's browser and waits
// for the redirect on a loopback listener.
func (p *OAuthProvider) consent(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	cfg := p.config
	cfg.RedirectURL = "http://" + ln.Addr().String() + "/callback"
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("oauth state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent denied: %s", q.Get("error"))
		default:
			res.code = q.Get("code")
		}
		select {
		case results <- res:
		default:
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("Authorization complete, you can close this tab."))
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 2 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("OAuth callback server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	log.Infof("Opening consent screen: %s", authURL)
	if err := p.openURL(authURL); err != nil {
		log.Warnf("Could not open browser, visit the URL above manually: %v", err)
	}

	wait, cancel := context.WithTimeout(ctx, p.consentWait)
	defer cancel()
	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	case <-wait.Done():
		return nil, fmt.Errorf("waiting for consent: %w", wait.Err())
	}
}

func loadToken() (*oauth2.Token, error) {
	raw, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decode stored token: %w", err)
	}
	return &tok, nil
}

func saveToken(tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringUser, string(b))
}
