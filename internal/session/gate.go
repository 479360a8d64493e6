package session

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/rs/zerolog"
)

// Credentials is the remembered login record persisted for form
// auto-fill (never for auto-login). Stored in clear text: this gate is
// an intentionally minimal stand-in, not a security boundary, which is
// exactly why it hides behind an interface a real provider can replace.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// Gate guards entry to the dashboard flow.
type Gate interface {
	Login(ctx context.Context, username, password string, remember bool) (bool, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	Remembered(ctx context.Context) (*Credentials, error)
}

// StaticGate compares against one fixed credential pair from config
// and keeps the session flag (no expiry) in a Repository.
type StaticGate struct {
	username string
	password string
	repo     Repository
	logger   *zerolog.Logger
}

func NewStaticGate(username, password string, repo Repository, logger *zerolog.Logger) *StaticGate {
	return &StaticGate{username: username, password: password, repo: repo, logger: logger}
}

// Login checks the pair and, on success, sets the session flag. When
// remember is requested the credentials are persisted for auto-fill;
// otherwise any remembered record is cleared.
func (g *StaticGate) Login(ctx context.Context, username, password string, remember bool) (bool, error) {
	userOK := strings.TrimSpace(username) == g.username
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) == 1
	if !userOK || !passOK {
		g.logger.Warn().Str("username", username).Msg("login rejected")
		return false, nil
	}

	if remember {
		if err := g.repo.SaveCredentials(ctx, &Credentials{Username: username, Password: password, Remember: true}); err != nil {
			return false, err
		}
	} else {
		if err := g.repo.ClearCredentials(ctx); err != nil {
			return false, err
		}
	}

	if err := g.repo.SetSession(ctx, true); err != nil {
		return false, err
	}

	g.logger.Info().Str("username", username).Msg("session opened")
	return true, nil
}

// Logout clears the session flag. Remembered credentials survive so
// the login form can still auto-fill next time.
func (g *StaticGate) Logout(ctx context.Context) error {
	g.logger.Info().Msg("session closed")
	return g.repo.SetSession(ctx, false)
}

// IsAuthenticated reads the session flag. Persistence failures read as
// "not logged in" rather than crashing the caller.
func (g *StaticGate) IsAuthenticated(ctx context.Context) bool {
	active, err := g.repo.Session(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("session flag unreadable")
		return false
	}
	return active
}

// Remembered returns the stored auto-fill record, or nil.
func (g *StaticGate) Remembered(ctx context.Context) (*Credentials, error) {
	return g.repo.Credentials(ctx)
}
