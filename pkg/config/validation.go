package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/samba"
	"github.com/marmos91/labgate/pkg/session"
	"github.com/marmos91/labgate/pkg/token"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors.
//
// Struct tags are checked first, then rules that span sections:
//   - every strategy named anywhere is a known type with a backend block
//   - every step named anywhere is known and its parameters are present
//   - enabled tokens carry a long enough secret
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint is required when telemetry is enabled")
	}

	if err := validateAuth(cfg); err != nil {
		return err
	}
	if err := validateSession(cfg); err != nil {
		return err
	}

	if cfg.Token.Enabled && len(cfg.Token.Secret) < token.MinSecretLength {
		return fmt.Errorf("token: secret must be at least %d characters", token.MinSecretLength)
	}
	return nil
}

func validateAuth(cfg *Config) error {
	a := &cfg.Auth
	if a.Ldap != nil {
		if err := a.Ldap.Validate(); err != nil {
			return err
		}
	}
	if a.Moodle != nil {
		if err := a.Moodle.LMS.Validate(); err != nil {
			return fmt.Errorf("auth.moodle: %w", err)
		}
	}
	if a.SSO != nil {
		if err := a.SSO.Validate(); err != nil {
			return err
		}
	}
	if a.Kerberos != nil && a.Kerberos.Realm == "" {
		return fmt.Errorf("auth.kerberos: realm is required")
	}

	seen := make(map[string]bool)
	for _, inst := range a.Institutions {
		if seen[inst.Namespace] {
			return fmt.Errorf("auth.institutions: duplicate namespace %q", inst.Namespace)
		}
		seen[inst.Namespace] = true
		if inst.Ldap != nil {
			if err := inst.Ldap.Validate(); err != nil {
				return fmt.Errorf("institution %s: %w", inst.Namespace, err)
			}
		}
		if inst.Moodle != nil {
			if err := inst.Moodle.LMS.Validate(); err != nil {
				return fmt.Errorf("institution %s: moodle: %w", inst.Namespace, err)
			}
		}
	}

	for _, ns := range cfg.Namespaces() {
		inst, _ := a.Institution(ns)
		for _, name := range cfg.StrategiesFor(ns) {
			t, err := auth.ParseType(name)
			if err != nil {
				return fmt.Errorf("namespace %s: unknown strategy %q", ns, name)
			}
			if !hasStrategyBlock(a, inst, t) {
				return fmt.Errorf("namespace %s: strategy %s has no auth.%s block", ns, t, strings.ToLower(string(t)))
			}
		}
	}
	return nil
}

func hasStrategyBlock(a *AuthConfig, inst InstitutionConfig, t auth.Type) bool {
	switch t {
	case auth.TypeDatabase:
		return true
	case auth.TypeLdap:
		return a.Ldap != nil || inst.Ldap != nil
	case auth.TypeMoodle:
		return a.Moodle != nil || inst.Moodle != nil
	case auth.TypeSSO:
		return a.SSO != nil
	case auth.TypeKerberos:
		return a.Kerberos != nil
	}
	return false
}

func validateSession(cfg *Config) error {
	s := &cfg.Session
	if s.Directory != nil {
		if err := s.Directory.Validate(); err != nil {
			return fmt.Errorf("session.directory: %w", err)
		}
	}

	for _, ns := range cfg.Namespaces() {
		inst, _ := cfg.Auth.Institution(ns)
		for _, step := range cfg.StepsFor(ns) {
			if err := checkStepConfig(cfg, inst, step); err != nil {
				return fmt.Errorf("namespace %s: step %s: %w", ns, step, err)
			}
		}
	}
	return nil
}

func checkStepConfig(cfg *Config, inst InstitutionConfig, step string) error {
	s := &cfg.Session
	switch {
	case strings.EqualFold(step, session.StepLdapAccount):
		if s.LdapAccount == nil {
			return errors.New("session.ldap_account is required")
		}
		if s.Directory == nil {
			return errors.New("session.directory is required")
		}
		if _, err := samba.ParseDomain(s.LdapAccount.SIDPrefix); err != nil {
			return fmt.Errorf("session.ldap_account.sid_prefix: %w", err)
		}
	case strings.EqualFold(step, session.StepPermissions):
		if s.Permissions == nil {
			return errors.New("session.permissions is required")
		}
	case strings.EqualFold(step, session.StepSambaPassword):
		if s.Directory == nil {
			return errors.New("session.directory is required")
		}
	case strings.EqualFold(step, session.StepHomeDirectory):
		if s.HomeDirectory == nil {
			return errors.New("session.home_directory is required")
		}
	case strings.EqualFold(step, session.StepUserDetails):
	case strings.EqualFold(step, session.StepMoodleAuthorise):
		if s.MoodleAuthorise == nil {
			return errors.New("session.moodle_authorise is required")
		}
		if cfg.Auth.Moodle == nil && inst.Moodle == nil {
			return errors.New("auth.moodle is required")
		}
	default:
		return errors.New("unknown step")
	}
	return nil
}

// formatValidationError converts validator errors to user-friendly messages.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	var messages []string
	for _, e := range validationErrors {
		messages = append(messages, formatFieldError(e))
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required (required_if %s)", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (oneof), got %q", field, e.Param(), e.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (%s)", field, e.Param(), e.Tag())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s (%s)", field, e.Param(), e.Tag())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (gt)", field, e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}
