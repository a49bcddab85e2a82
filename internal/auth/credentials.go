package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-chatclient/internal/types"
)

// ErrNoSession means no usable credentials exist; the engine takes no
// further action and leaves re-authentication to the caller.
var ErrNoSession = errors.New("no session")

// Credentials is the identity record and opaque token written by the auth
// service at login, read once at session creation.
type Credentials struct {
	User  types.Identity `json:"user"`
	Token string         `json:"token"`
}

// Load reads credentials from the session file at path.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}

	if creds.User.Id == "" || creds.Token == "" {
		return nil, ErrNoSession
	}

	if tokenExpired(creds.Token, time.Now()) {
		return nil, fmt.Errorf("%w: token expired", ErrNoSession)
	}

	return &creds, nil
}

// tokenExpired inspects the token's exp claim without verifying the
// signature. The token is opaque to this client, so a token that does not
// parse as a JWT is passed through as-is.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}

	return !claims.VerifyExpiresAt(now.Unix(), false)
}
