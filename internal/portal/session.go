package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"hopwatch/internal/logger"
)

// SessionConfig carries everything the session needs to authenticate and
// talk to the portal API.
type SessionConfig struct {
	BaseURL        string
	Username       string
	Password       string
	ProbeCardID    string // card whose listing serves as the validity probe
	MaxRetries     int
	RequestTimeout time.Duration
	Login          InteractiveLogin
}

// SessionState is the authenticated state: an HTTP client whose jar holds
// the cookies handed over by the sign-in flow. It is replaced wholesale on
// every login and never persisted.
type SessionState struct {
	Client          *http.Client
	CookieCount     int // diagnostic only
	AuthenticatedAt time.Time
	LastValidatedAt time.Time
}

// Session owns one authenticated HTTP session against the portal.
type Session struct {
	cfg   SessionConfig
	state *SessionState
}

func NewSession(cfg SessionConfig) *Session {
	return &Session{cfg: cfg}
}

// Login delegates credential submission to the interactive sign-in
// collaborator and, on success, replaces the session state with a fresh
// retrying HTTP client carrying the returned cookies verbatim.
func (s *Session) Login(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().Msg("starting interactive sign-in")

	cookies, err := s.cfg.Login.Perform(ctx, s.cfg.Username, s.cfg.Password)
	if err != nil {
		s.state = nil
		switch {
		case errors.Is(err, ErrAuthTimeout), errors.Is(err, ErrAuthRejected):
			return err
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%w: %v", ErrAuthTimeout, err)
		default:
			return fmt.Errorf("Login: %w", err)
		}
	}

	client, err := s.newHTTPClient(log, cookies)
	if err != nil {
		s.state = nil
		return fmt.Errorf("Login: %w", err)
	}

	now := time.Now()
	s.state = &SessionState{
		Client:          client,
		CookieCount:     len(cookies),
		AuthenticatedAt: now,
		LastValidatedAt: now,
	}
	log.Info().Int("cookies", len(cookies)).Msg("signed in, cookies transferred to API client")
	return nil
}

// Valid probes the portal with one representative card's listing and reports
// whether the session is still usable. Every outcome other than HTTP 200,
// transport failures included, is simply "not valid" — never an error.
func (s *Session) Valid(ctx context.Context) bool {
	if s.state == nil {
		return false
	}
	resp, err := s.Get(ctx, s.TransactionsURL(s.cfg.ProbeCardID))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false
	}
	s.state.LastValidatedAt = time.Now()
	return true
}

// Get issues an authenticated GET through the session's retrying client.
func (s *Session) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if s.state == nil {
		return nil, ErrNoSession
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return s.state.Client.Do(req)
}

// TransactionsURL returns the listing endpoint for one card.
func (s *Session) TransactionsURL(cardID string) string {
	return fmt.Sprintf("%s/hop/cards/%s/transactions",
		strings.TrimSuffix(s.cfg.BaseURL, "/"), url.PathEscape(cardID))
}

// State exposes the current session state for diagnostics.
func (s *Session) State() *SessionState {
	return s.state
}

// newHTTPClient builds the portal API client: automatic retry with
// exponential backoff on transient statuses (429 and 5xx), a fixed
// per-request timeout, and the sign-in cookies installed in the jar.
func (s *Session) newHTTPClient(log zerolog.Logger, cookies []*http.Cookie) (*http.Client, error) {
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(base, cookies)

	rc := retryablehttp.NewClient()
	rc.RetryMax = s.cfg.MaxRetries
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 30 * time.Second
	rc.HTTPClient.Timeout = s.cfg.RequestTimeout
	rc.Logger = retryLogger{log: log}

	client := rc.StandardClient()
	client.Jar = jar
	return client, nil
}

// retryLogger routes the retry client's chatter into zerolog at debug level.
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Printf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}
