package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/marmos91/labgate/internal/logger"
)

// Rule maps a filter expression to the groups granted when it applies.
// Expr is nil for a rule kept only for the legacy scan.
type Rule struct {
	Source string
	Expr   Expr
	Groups []string

	raw string // expression text, used by the legacy scan
}

// ParseRule parses "expr{group1,group2}".
func ParseRule(src string) (*Rule, error) {
	r, err := splitRule(src)
	if err != nil {
		return nil, err
	}
	if r.Expr, err = ParseExpr(r.raw); err != nil {
		return nil, err
	}
	return r, nil
}

// splitRule separates the expression text from the group list.
func splitRule(src string) (*Rule, error) {
	src = strings.TrimSpace(src)
	open := strings.LastIndexByte(src, '{')
	if open < 0 || !strings.HasSuffix(src, "}") {
		return nil, fmt.Errorf("%w: %q has no {group,...} list", ErrSyntax, src)
	}

	var groups []string
	for _, g := range strings.Split(src[open+1:len(src)-1], ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: %q grants no groups", ErrSyntax, src)
	}

	return &Rule{Source: src, Groups: groups, raw: src[:open]}, nil
}

// RuleSet is an ordered, immutable collection of rules.
type RuleSet struct {
	rules []*Rule

	// compat also applies a rule when the legacy two-pass scan accepts it.
	compat bool
}

// Option configures a RuleSet.
type Option func(*RuleSet)

// WithLegacyScan makes a rule apply when either the parsed expression or
// the legacy token scan accepts the record. Disagreements are logged so
// deployed rule sets can be audited.
func WithLegacyScan() Option {
	return func(rs *RuleSet) { rs.compat = true }
}

// Compile parses every rule. The first syntax error aborts compilation,
// except in legacy scan mode, where a rule whose expression does not parse
// is kept and evaluated by the legacy scan alone. A rule without a group
// list is always an error.
func Compile(sources []string, opts ...Option) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, o := range opts {
		o(rs)
	}
	for _, s := range sources {
		r, err := splitRule(s)
		if err != nil {
			return nil, err
		}
		if r.Expr, err = ParseExpr(r.raw); err != nil {
			if !rs.compat {
				return nil, err
			}
			logger.Warn("Filter rule does not parse, using legacy scan only",
				logger.KeyRule, r.Source, logger.Err(err))
		}
		rs.rules = append(rs.rules, r)
	}
	return rs, nil
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Applies reports whether r applies to rec.
func (rs *RuleSet) Applies(ctx context.Context, r *Rule, rec Record) bool {
	if r.Expr == nil {
		return LegacyScan(r.raw, rec)
	}
	ok := r.Expr.Eval(rec)
	if !rs.compat {
		return ok
	}
	legacy := LegacyScan(r.raw, rec)
	if legacy != ok {
		logger.WarnCtx(ctx, "filter rule result differs from legacy scan",
			logger.KeyRule, r.Source, "parsed", ok, "legacy", legacy)
	}
	return ok || legacy
}

// Groups returns the sorted union of the groups of every applying rule.
func (rs *RuleSet) Groups(ctx context.Context, rec Record) []string {
	set := make(map[string]struct{})
	for _, r := range rs.rules {
		if !rs.Applies(ctx, r, rec) {
			continue
		}
		for _, g := range r.Groups {
			set[g] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
