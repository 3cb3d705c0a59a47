package portal

import (
	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/directory"
	"github.com/marmos91/labgate/pkg/lms"
	"github.com/marmos91/labgate/pkg/scheduler"
	"github.com/marmos91/labgate/pkg/session"
	"github.com/marmos91/labgate/pkg/throttle"
)

// Option overrides a collaborator that New would otherwise build from
// the configuration.
type Option func(*options)

type options struct {
	store    store.Store
	dial     func(directory.Config) directory.Dialer
	openLMS  func(lms.Config) (*lms.Client, error)
	limiter  throttle.Limiter
	queue    scheduler.QueueChecker
	uids     session.UIDSource
	commands session.CommandRunner
}

// WithStore uses s instead of opening the configured database. The
// portal does not close a store supplied this way.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithDialer builds directory dialers with f.
func WithDialer(f func(directory.Config) directory.Dialer) Option {
	return func(o *options) { o.dial = f }
}

// WithLMS opens Moodle connections with f.
func WithLMS(f func(lms.Config) (*lms.Client, error)) Option {
	return func(o *options) { o.openLMS = f }
}

func WithLimiter(l throttle.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func WithQueueChecker(q scheduler.QueueChecker) Option {
	return func(o *options) { o.queue = q }
}

func WithUIDSource(u session.UIDSource) Option {
	return func(o *options) { o.uids = u }
}

func WithCommandRunner(r session.CommandRunner) Option {
	return func(o *options) { o.commands = r }
}

func defaultDialer(cfg directory.Config) directory.Dialer {
	return directory.NewDialer(cfg)
}
