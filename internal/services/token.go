package services

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/desertthunder/mdash/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	// DeveloperTokenTTL is the lifetime of a signed developer token. Apple allows up to six months.
	DeveloperTokenTTL = 12 * time.Hour
	expiryLeeway      = 5 * time.Minute
)

// musicKitSigner mints ES256 developer tokens from a MusicKit private key.
type musicKitSigner struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey
	ttl    time.Duration
	now    func() time.Time
}

// Token signs a fresh developer token. The reported expiry is slightly earlier than the JWT's so it is replaced before Apple rejects it.
func (s *musicKitSigner) Token() (*oauth2.Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    s.teamID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign developer token: %w", err)
	}

	return &oauth2.Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		Expiry:      exp.Add(-expiryLeeway),
	}, nil
}

// refreshableTokenSource wraps a token source and calls callback whenever a new token is handed out.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// NewSignedTokenSource returns a source of developer tokens signed with the PEM encoded MusicKit key.
// Tokens are reused until shortly before they expire.
func NewSignedTokenSource(teamID, keyID string, pemKey []byte, ttl time.Duration) (oauth2.TokenSource, error) {
	if teamID == "" || keyID == "" {
		return nil, fmt.Errorf("%w: team_id and key_id are required to sign developer tokens", shared.ErrMissingCredentials)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse MusicKit private key: %v", shared.ErrInvalidConfig, err)
	}

	if ttl <= expiryLeeway {
		ttl = DeveloperTokenTTL
	}

	signer := &musicKitSigner{teamID: teamID, keyID: keyID, key: key, ttl: ttl, now: time.Now}
	return oauth2.ReuseTokenSource(nil, signer), nil
}

// NewDeveloperTokenSource builds the developer token source described by cfg.
//
// A configured developer_token is used as-is; otherwise tokens are signed from the key at private_key_path.
// onRefresh, if non-nil, is called each time a different token is issued.
func NewDeveloperTokenSource(cfg shared.AppleMusicConfig, onRefresh func(*oauth2.Token)) (oauth2.TokenSource, error) {
	var source oauth2.TokenSource

	switch {
	case cfg.DeveloperToken != "":
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.DeveloperToken, TokenType: "Bearer"})
	case cfg.PrivateKeyPath != "":
		pemKey, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read private key: %v", shared.ErrMissingCredentials, err)
		}
		source, err = NewSignedTokenSource(cfg.TeamID, cfg.KeyID, pemKey, DeveloperTokenTTL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: set developer_token or private_key_path for apple music", shared.ErrMissingCredentials)
	}

	return &refreshableTokenSource{source: source, callback: onRefresh}, nil
}
