// Package portal assembles the login pipeline of one labgate deployment:
// throttling, the per-institution strategy chains, session provisioning
// and token issuance.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/internal/telemetry"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/config"
	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/lms"
	"github.com/marmos91/labgate/pkg/metrics"
	"github.com/marmos91/labgate/pkg/scheduler"
	"github.com/marmos91/labgate/pkg/session"
	"github.com/marmos91/labgate/pkg/throttle"
	"github.com/marmos91/labgate/pkg/token"
)

// ErrUnknownNamespace is returned for logins naming an institution that
// is not configured.
var ErrUnknownNamespace = errors.New("unknown namespace")

// LoginRequest is one login attempt.
type LoginRequest struct {
	// Namespace selects the institution. Empty means the default.
	Namespace   string
	Credentials auth.Credentials
	ClientIP    string
}

// LoginOutcome describes a finished login.
type LoginOutcome struct {
	Result *auth.Result

	// Session, Groups and Tokens are set only for successful logins.
	// Tokens is nil when token issuance is disabled.
	Session *session.Report
	Groups  []string
	Tokens  *token.Pair
}

// Success reports whether the credentials were accepted.
func (o *LoginOutcome) Success() bool {
	return o != nil && o.Result != nil && o.Result.Success
}

// Portal serves logins for every configured namespace. It is safe for
// concurrent use once built.
type Portal struct {
	cfg       *config.Config
	store     store.Store
	ownsStore bool

	authenticators map[string]*auth.Authenticator
	runners        map[string]*session.Runner
	issuer         *token.Issuer
	limiter        throttle.Limiter

	mu      sync.Mutex
	closers []func() error
	lms     map[*lms.Config]*lms.Client
}

// New builds the pipeline described by cfg. Every namespace must yield
// at least one strategy and every configured step must be constructible;
// otherwise New fails with an error wrapping auth.ErrConfiguration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Portal, error) {
	o := options{dial: defaultDialer, openLMS: lms.Open}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Portal{
		cfg:            cfg,
		store:          o.store,
		authenticators: make(map[string]*auth.Authenticator),
		runners:        make(map[string]*session.Runner),
		lms:            make(map[*lms.Config]*lms.Client),
	}

	if p.store == nil {
		s, err := store.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open control plane store: %w", err)
		}
		p.store = s
		p.ownsStore = true
	}

	if err := p.build(ctx, o); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Portal) build(ctx context.Context, o options) error {
	limiter := o.limiter
	if limiter == nil {
		l, closeFn, err := throttle.Open(ctx, p.cfg.Throttle)
		if err != nil {
			return err
		}
		limiter = l
		p.addCloser(closeFn)
	}
	p.limiter = limiter

	if p.cfg.Token.Enabled {
		issuer, err := token.NewIssuer(p.cfg.Token.Config)
		if err != nil {
			return auth.Configuration("token issuer: %v", err)
		}
		p.issuer = issuer
	}

	queue := o.queue
	if queue == nil {
		queue = scheduler.New(p.cfg.Scheduler)
	}

	registry := p.registry(o)
	authMetrics := metrics.NewAuthMetrics()
	sessionMetrics := metrics.NewSessionMetrics()

	for _, ns := range p.cfg.Namespaces() {
		strategies, err := registry.Build(ns, p.cfg.StrategiesFor(ns))
		if err != nil {
			return fmt.Errorf("namespace %s: %w", ns, err)
		}
		for _, s := range strategies {
			if c, ok := s.(interface{ Close() error }); ok {
				p.addCloser(c.Close)
			}
		}

		a, err := auth.NewAuthenticator(strategies,
			auth.WithMetrics(authMetrics),
			auth.WithLoginRecorder(p.store))
		if err != nil {
			return fmt.Errorf("namespace %s: %w", ns, err)
		}
		p.authenticators[ns] = a

		steps, err := p.steps(ns, o, queue)
		if err != nil {
			return fmt.Errorf("namespace %s: %w", ns, err)
		}
		runner, err := session.NewRunner(steps, session.WithMetrics(sessionMetrics))
		if err != nil {
			return fmt.Errorf("namespace %s: %w", ns, err)
		}
		p.runners[ns] = runner

		names := make([]string, 0, len(strategies))
		for _, s := range strategies {
			names = append(names, s.Type().String())
		}
		logger.Info("Namespace ready",
			logger.Namespace(ns),
			"strategies", strings.Join(names, ","),
			"steps", strings.Join(p.cfg.StepsFor(ns), ","))
	}
	return nil
}

// Login authenticates req and, when the credentials are accepted,
// provisions the session and issues tokens.
//
// Rejected credentials are not an error: the outcome reports
// Success() == false. Throttled attempts return throttle.ErrThrottled
// without consulting any backend.
func (p *Portal) Login(ctx context.Context, req LoginRequest) (*LoginOutcome, error) {
	ns := req.Namespace
	if ns == "" {
		ns = p.cfg.Auth.Namespace
	}
	authn, ok := p.authenticators[ns]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
	}
	username := req.Credentials.Username

	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(uuid.NewString(), req.ClientIP)
	}
	ctx = logger.WithContext(ctx, lc.WithUser(ns, username))
	ctx, span := telemetry.StartLoginSpan(ctx, ns, username)
	defer span.End()

	throttled := username != ""
	if throttled {
		if err := p.limiter.Check(ctx, ns, username, req.ClientIP); err != nil {
			if errors.Is(err, throttle.ErrThrottled) {
				logger.WarnCtx(ctx, "Login throttled", logger.KeyClientIP, req.ClientIP)
				return nil, err
			}
			// Redis outages must not lock everyone out.
			logger.WarnCtx(ctx, "Throttle check unavailable", logger.Err(err))
		}
	}

	res, err := authn.AuthenticateCredentials(ctx, req.Credentials)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	out := &LoginOutcome{Result: res}

	if !res.Success {
		if throttled {
			if err := p.limiter.Fail(ctx, ns, username, req.ClientIP); err != nil {
				logger.WarnCtx(ctx, "Failed to record failed login", logger.Err(err))
			}
		}
		return out, nil
	}
	if throttled {
		if err := p.limiter.Reset(ctx, ns, username, req.ClientIP); err != nil {
			logger.WarnCtx(ctx, "Failed to reset login throttle", logger.Err(err))
		}
	}

	report, err := p.runners[ns].Run(ctx, res, p.cfg.StepsFor(ns))
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	out.Session = report

	info := res.Info
	out.Groups = p.groups(ctx, info.Namespace(), info.Username())

	if p.issuer != nil {
		pair, err := p.issuer.Issue(token.Subject{
			Namespace: info.Namespace(),
			Username:  info.Username(),
			Strategy:  res.Type.String(),
			Groups:    out.Groups,
		})
		if err != nil {
			return nil, err
		}
		out.Tokens = pair
	}

	logger.InfoCtx(ctx, "Login complete",
		logger.Strategy(res.Type.String()),
		"groups", len(out.Groups),
		"failed_steps", strings.Join(report.Failed(), ","))
	return out, nil
}

func (p *Portal) groups(ctx context.Context, namespace, name string) []string {
	classes, err := p.store.GetPrincipalGroups(ctx, namespace, name)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to read principal groups", logger.Err(err))
		return nil
	}
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.Name)
	}
	return names
}

// ValidateSession checks a session token.
func (p *Portal) ValidateSession(tokenString string) (*token.Claims, error) {
	if p.issuer == nil {
		return nil, auth.Configuration("token issuance is disabled")
	}
	return p.issuer.ValidateSession(tokenString)
}

// Refresh exchanges a refresh token for a new pair.
func (p *Portal) Refresh(refreshToken string) (*token.Pair, error) {
	if p.issuer == nil {
		return nil, auth.Configuration("token issuance is disabled")
	}
	return p.issuer.Refresh(refreshToken)
}

// Namespaces returns the namespaces served, default first.
func (p *Portal) Namespaces() []string {
	return p.cfg.Namespaces()
}

// Store returns the control plane store.
func (p *Portal) Store() store.Store {
	return p.store
}

// Healthcheck verifies the control plane database.
func (p *Portal) Healthcheck(ctx context.Context) error {
	return p.store.Healthcheck(ctx)
}

func (p *Portal) addCloser(f func() error) {
	if f == nil {
		return
	}
	p.mu.Lock()
	p.closers = append(p.closers, f)
	p.mu.Unlock()
}

// Close releases every backend connection opened by New.
func (p *Portal) Close() error {
	p.mu.Lock()
	closers := p.closers
	p.closers = nil
	p.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if p.ownsStore && p.store != nil {
		if err := p.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
