package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrWrongKind           = errors.New("wrong token kind")
	ErrSigningFailed       = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("token secret must be at least 32 characters")
)

// MinSecretLength is the shortest HMAC secret the issuer accepts.
const MinSecretLength = 32

// Config configures token issuance.
type Config struct {
	// Secret is the HMAC signing key.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// Issuer is written to the iss claim. Default: "labgate".
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// SessionTTL is the lifetime of session tokens. Default: 8 hours.
	SessionTTL time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`

	// RefreshTTL is the lifetime of refresh tokens. Default: 7 days.
	RefreshTTL time.Duration `mapstructure:"refresh_ttl" yaml:"refresh_ttl"`
}

// Subject identifies who a token is issued to.
type Subject struct {
	Namespace string
	Username  string
	Strategy  string
	Groups    []string
}

// Pair is returned to the client after login.
type Pair struct {
	SessionToken string    `json:"session_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Issuer signs and validates tokens with HS256.
type Issuer struct {
	config Config
	now    func() time.Time
}

// NewIssuer validates cfg and applies defaults.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrInvalidSecretLength
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "labgate"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 8 * time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Issuer{config: cfg, now: time.Now}, nil
}

// Issue creates a session/refresh pair for sub.
func (i *Issuer) Issue(sub Subject) (*Pair, error) {
	now := i.now()
	sessionExpiry := now.Add(i.config.SessionTTL)

	session, err := i.sign(sub, KindSession, now, sessionExpiry)
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	refresh, err := i.sign(sub, KindRefresh, now, now.Add(i.config.RefreshTTL))
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	return &Pair{
		SessionToken: session,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(i.config.SessionTTL.Seconds()),
		ExpiresAt:    sessionExpiry,
	}, nil
}

func (i *Issuer) sign(sub Subject, kind Kind, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.Issuer,
			Subject:   sub.Namespace + "/" + sub.Username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Namespace: sub.Namespace,
		Username:  sub.Username,
		Strategy:  sub.Strategy,
		Groups:    sub.Groups,
		Kind:      kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.config.Secret))
	if err != nil {
		return "", ErrSigningFailed
	}
	return signed, nil
}

// Validate parses and verifies a token of any kind.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(i.config.Secret), nil
	},
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateSession validates tokenString and requires a session token.
func (i *Issuer) ValidateSession(tokenString string) (*Claims, error) {
	return i.validateKind(tokenString, KindSession)
}

// Refresh exchanges a refresh token for a new pair carrying the same
// identity.
func (i *Issuer) Refresh(refreshToken string) (*Pair, error) {
	claims, err := i.validateKind(refreshToken, KindRefresh)
	if err != nil {
		return nil, err
	}
	return i.Issue(Subject{
		Namespace: claims.Namespace,
		Username:  claims.Username,
		Strategy:  claims.Strategy,
		Groups:    claims.Groups,
	})
}

func (i *Issuer) validateKind(tokenString string, kind Kind) (*Claims, error) {
	claims, err := i.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}
