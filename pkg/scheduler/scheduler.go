// Package scheduler queries the remote lab scheduling server about a
// user's queue and session state.
package scheduler

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds a queue check when none is configured.
const DefaultTimeout = 10 * time.Second

// ErrUnavailable is returned when the scheduling server cannot be reached
// or answers with a fault.
var ErrUnavailable = errors.New("scheduling server unavailable")

// QueueStatus is the scheduler's view of a user.
type QueueStatus struct {
	InQueue   bool
	InSession bool
}

// QueueChecker reports whether a user is queued for, or using, a rig.
// principal is the qualified "namespace:name" form.
type QueueChecker interface {
	IsUserInQueue(ctx context.Context, principal string) (QueueStatus, error)
}

// Config configures the scheduler client.
type Config struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the URL of the queuer SOAP service.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true,omitempty,url"`

	// Namespace is the XML namespace of the queuer operations.
	Namespace string `mapstructure:"namespace" yaml:"namespace"`

	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// New returns the checker described by cfg.
func New(cfg Config) QueueChecker {
	if !cfg.Enabled {
		return Disabled{}
	}
	return NewSOAPClient(cfg)
}

// Disabled reports every user as idle.
type Disabled struct{}

// IsUserInQueue implements QueueChecker.
func (Disabled) IsUserInQueue(context.Context, string) (QueueStatus, error) {
	return QueueStatus{}, nil
}
