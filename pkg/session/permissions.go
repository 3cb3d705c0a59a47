package session

import (
	"context"
	"fmt"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/controlplane/store"
	"github.com/marmos91/labgate/pkg/directory"
	"github.com/marmos91/labgate/pkg/rules"
)

// GroupReconciler replaces a principal's memberships.
type GroupReconciler interface {
	ReconcileGroups(ctx context.Context, namespace, name string, desired []string, opts store.ReconcileOptions) (*store.ReconcileResult, error)
}

// PermissionsConfig configures directory-driven group sync.
type PermissionsConfig struct {
	// Rules are filter rules of the form "expr{group,...}".
	Rules []string `mapstructure:"rules" yaml:"rules" validate:"required,min=1"`

	// LegacyScan also applies a rule when the two-pass token scan of
	// older deployments accepts it.
	LegacyScan bool `mapstructure:"legacy_scan" yaml:"legacy_scan"`

	CreateMissingGroups bool `mapstructure:"create_missing_groups" yaml:"create_missing_groups"`
}

// Permissions makes the principal's groups equal the union of the groups
// granted by every rule matching its directory entry.
type Permissions struct {
	rules         *rules.RuleSet
	groups        GroupReconciler
	createMissing bool
}

// NewPermissions compiles the rules.
func NewPermissions(cfg PermissionsConfig, groups GroupReconciler) (*Permissions, error) {
	if len(cfg.Rules) == 0 {
		return nil, auth.Configuration("permissions step: no rules configured")
	}
	if groups == nil {
		return nil, auth.Configuration("permissions step: no group store")
	}
	var opts []rules.Option
	if cfg.LegacyScan {
		opts = append(opts, rules.WithLegacyScan())
	}
	rs, err := rules.Compile(cfg.Rules, opts...)
	if err != nil {
		return nil, auth.Configuration("permissions step: %v", err)
	}
	return &Permissions{rules: rs, groups: groups, createMissing: cfg.CreateMissingGroups}, nil
}

func (s *Permissions) Name() string { return StepPermissions }

func (s *Permissions) Setup(ctx context.Context, res *auth.Result) error {
	de, ok := res.Info.(auth.DirectoryEntry)
	if !ok || de.Entry() == nil {
		return auth.Configuration("permissions step: %s login carries no directory entry", res.Type)
	}

	desired := s.rules.Groups(ctx, directory.Record(de.Entry()))
	return reconcile(ctx, s.groups, res.Info, desired, s.createMissing)
}

// reconcile applies desired and logs the changes.
func reconcile(ctx context.Context, groups GroupReconciler, info auth.Info, desired []string, createMissing bool) error {
	result, err := groups.ReconcileGroups(ctx, info.Namespace(), info.Username(), desired,
		store.ReconcileOptions{CreateMissing: createMissing})
	if err != nil {
		return fmt.Errorf("reconcile groups: %w", err)
	}

	for _, g := range result.Unknown {
		logger.WarnCtx(ctx, "Rule grants unknown user class",
			logger.Username(info.Username()),
			logger.Group(g))
	}
	if result.Changed() {
		logger.InfoCtx(ctx, "Reconciled user classes",
			logger.Username(info.Username()),
			logger.KeyAdded, result.Added,
			logger.KeyRemoved, result.Removed)
	}
	return nil
}
