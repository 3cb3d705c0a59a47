package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/internal/telemetry"
	"github.com/marmos91/labgate/pkg/metrics"
)

// Type names a strategy. The values appear in configuration files.
type Type string

const (
	TypeDatabase Type = "Database"
	TypeLdap     Type = "Ldap"
	TypeMoodle   Type = "Moodle"
	TypeSSO      Type = "SSO"
	TypeKerberos Type = "Kerberos"
)

var knownTypes = []Type{TypeDatabase, TypeLdap, TypeMoodle, TypeSSO, TypeKerberos}

// ParseType resolves a configured strategy name, ignoring case.
func ParseType(name string) (Type, error) {
	for _, t := range knownTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return "", Configuration("unknown authentication type %q", name)
}

func (t Type) String() string { return string(t) }

// Credentials is what the login form or the federation handler supplies.
type Credentials struct {
	Username string
	Password string

	// Attributes carries federation attributes released by an SSO
	// identity provider. Keys are attribute names or OIDs.
	Attributes map[string][]string
}

// Strategy verifies credentials against one backend.
//
// Authenticate returns an error wrapping ErrAuthenticationFailed when the
// backend rejects the credentials. Every other error is fatal for the
// login. Implementations must be safe for concurrent use.
type Strategy interface {
	Type() Type
	Authenticate(ctx context.Context, creds Credentials) (Info, error)
}

// Result is the outcome of one login attempt.
type Result struct {
	Success bool

	// Type, Strategy and Info describe the winning strategy. They are
	// zero when Success is false.
	Type     Type
	Strategy Strategy
	Info     Info
}

// LoginRecorder records successful logins.
type LoginRecorder interface {
	UpdateLastLogin(ctx context.Context, namespace, name string, at time.Time) error
}

// Authenticator tries its strategies in order and stops at the first
// success. It holds no per-login state and is safe for concurrent use.
type Authenticator struct {
	strategies []Strategy
	metrics    metrics.AuthMetrics
	recorder   LoginRecorder
	now        func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithMetrics records attempts in m. A nil m disables metrics.
func WithMetrics(m metrics.AuthMetrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// WithLoginRecorder updates the last login time of winning principals.
func WithLoginRecorder(r LoginRecorder) Option {
	return func(a *Authenticator) { a.recorder = r }
}

// NewAuthenticator returns an Authenticator over strategies. An empty
// chain is a configuration error.
func NewAuthenticator(strategies []Strategy, opts ...Option) (*Authenticator, error) {
	if len(strategies) == 0 {
		return nil, Configuration("no authentication strategies configured")
	}
	a := &Authenticator{
		strategies: append([]Strategy(nil), strategies...),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Strategies returns the configured chain.
func (a *Authenticator) Strategies() []Strategy {
	return a.strategies
}

// Authenticate checks a username and password.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*Result, error) {
	return a.AuthenticateCredentials(ctx, Credentials{Username: username, Password: password})
}

// AuthenticateCredentials runs the chain. Rejections by every strategy
// yield an unsuccessful Result and a nil error. A fatal strategy error
// stops the chain and is returned.
func (a *Authenticator) AuthenticateCredentials(ctx context.Context, creds Credentials) (*Result, error) {
	for _, s := range a.strategies {
		info, err := a.attempt(ctx, s, creds)
		if err == nil {
			metrics.ObserveLogin(a.metrics, metrics.OutcomeSuccess)
			a.recordLogin(ctx, info)
			return &Result{Success: true, Type: s.Type(), Strategy: s, Info: info}, nil
		}
		if IsFailure(err) {
			logger.DebugCtx(ctx, "Authentication strategy rejected credentials",
				logger.Strategy(s.Type().String()),
				logger.Username(creds.Username),
				logger.Err(err))
			continue
		}

		metrics.ObserveLogin(a.metrics, metrics.OutcomeError)
		logger.ErrorCtx(ctx, "Authentication strategy failed",
			logger.Strategy(s.Type().String()),
			logger.Username(creds.Username),
			logger.Err(err))
		return nil, fmt.Errorf("%s authentication: %w", s.Type(), Backend(err))
	}

	metrics.ObserveLogin(a.metrics, metrics.OutcomeFailure)
	logger.InfoCtx(ctx, "Login rejected", logger.Username(creds.Username))
	return &Result{}, nil
}

func (a *Authenticator) attempt(ctx context.Context, s Strategy, creds Credentials) (Info, error) {
	ctx, span := telemetry.StartAuthSpan(ctx, s.Type().String(), creds.Username)
	defer span.End()

	start := time.Now()
	info, err := s.Authenticate(ctx, creds)
	if err == nil && info == nil {
		err = Backend(errors.New("strategy returned no principal info"))
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case IsFailure(err):
		outcome = metrics.OutcomeFailure
	default:
		outcome = metrics.OutcomeError
		telemetry.RecordError(ctx, err)
	}
	metrics.ObserveAttempt(a.metrics, s.Type().String(), outcome, time.Since(start))
	return info, err
}

func (a *Authenticator) recordLogin(ctx context.Context, info Info) {
	logger.InfoCtx(ctx, "Login accepted",
		logger.Namespace(info.Namespace()),
		logger.Username(info.Username()))
	if a.recorder == nil {
		return
	}
	if err := a.recorder.UpdateLastLogin(ctx, info.Namespace(), info.Username(), a.now()); err != nil {
		logger.WarnCtx(ctx, "Failed to record last login",
			logger.Username(info.Username()),
			logger.Err(err))
	}
}
