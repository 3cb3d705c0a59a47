package portal

import (
	"strings"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/auth/database"
	"github.com/marmos91/labgate/pkg/auth/kerberos"
	ldapauth "github.com/marmos91/labgate/pkg/auth/ldap"
	"github.com/marmos91/labgate/pkg/auth/moodle"
	"github.com/marmos91/labgate/pkg/auth/sso"
	"github.com/marmos91/labgate/pkg/directory"
	"github.com/marmos91/labgate/pkg/lms"
	"github.com/marmos91/labgate/pkg/scheduler"
	"github.com/marmos91/labgate/pkg/session"
)

// registry registers a factory for every strategy type with a backend
// block, plus per-institution factories for overridden backends.
func (p *Portal) registry(o options) *auth.Registry {
	r := auth.NewRegistry()
	a := &p.cfg.Auth

	r.Register(auth.TypeDatabase, func(ns string) (auth.Strategy, error) {
		return database.New(p.store, ns)
	})
	if a.Ldap != nil {
		r.Register(auth.TypeLdap, p.ldapFactory(a.Ldap, o))
	}
	if a.Moodle != nil {
		r.Register(auth.TypeMoodle, p.moodleFactory(a.Moodle, o))
	}
	if a.SSO != nil {
		cfg := *a.SSO
		r.Register(auth.TypeSSO, func(ns string) (auth.Strategy, error) {
			return sso.New(cfg, p.store, ns)
		})
	}
	if a.Kerberos != nil {
		cfg := *a.Kerberos
		r.Register(auth.TypeKerberos, func(ns string) (auth.Strategy, error) {
			return kerberos.New(cfg, p.store, ns)
		})
	}

	for _, inst := range a.Institutions {
		if inst.Ldap != nil {
			r.RegisterInstitution(inst.Namespace, auth.TypeLdap, p.ldapFactory(inst.Ldap, o))
		}
		if inst.Moodle != nil {
			r.RegisterInstitution(inst.Namespace, auth.TypeMoodle, p.moodleFactory(inst.Moodle, o))
		}
	}
	return r
}

func (p *Portal) ldapFactory(cfg *ldapauth.Config, o options) auth.Factory {
	return func(ns string) (auth.Strategy, error) {
		c := *cfg
		c.ApplyDefaults()
		return ldapauth.New(c, o.dial(c.Directory), p.store, ns)
	}
}

func (p *Portal) moodleFactory(cfg *moodle.Config, o options) auth.Factory {
	return func(ns string) (auth.Strategy, error) {
		client, err := p.lmsClient(&cfg.LMS, o)
		if err != nil {
			return nil, err
		}
		return moodle.New(*cfg, client, p.store, ns)
	}
}

// lmsClient returns the shared connection for cfg, opening it on first
// use.
func (p *Portal) lmsClient(cfg *lms.Config, o options) (*lms.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.lms[cfg]; ok {
		return c, nil
	}
	c, err := o.openLMS(*cfg)
	if err != nil {
		return nil, auth.Backend(err)
	}
	p.lms[cfg] = c
	p.closers = append(p.closers, c.Close)
	return c, nil
}

// moodleConfig returns the Moodle block that applies to ns.
func (p *Portal) moodleConfig(ns string) *moodle.Config {
	if inst, ok := p.cfg.Auth.Institution(ns); ok && inst.Moodle != nil {
		return inst.Moodle
	}
	return p.cfg.Auth.Moodle
}

// sessionDirectory returns the directory read by session steps: the
// dedicated account directory if configured, else the one the Ldap
// strategy binds against.
func (p *Portal) sessionDirectory(ns string) *directory.Config {
	if p.cfg.Session.Directory != nil {
		return p.cfg.Session.Directory
	}
	if inst, ok := p.cfg.Auth.Institution(ns); ok && inst.Ldap != nil {
		return &inst.Ldap.Directory
	}
	if p.cfg.Auth.Ldap != nil {
		return &p.cfg.Auth.Ldap.Directory
	}
	return nil
}

// steps constructs the provisioning steps named for ns.
func (p *Portal) steps(ns string, o options, queue scheduler.QueueChecker) ([]session.Step, error) {
	s := &p.cfg.Session
	commands := o.commands
	if commands == nil {
		commands = session.ExecRunner{}
	}
	uids := o.uids
	if uids == nil {
		uids = session.Getent{Command: s.Getent, Runner: commands}
	}

	var steps []session.Step
	for _, name := range p.cfg.StepsFor(ns) {
		var (
			step session.Step
			err  error
		)
		switch {
		case strings.EqualFold(name, session.StepLdapAccount):
			if s.LdapAccount == nil || s.Directory == nil {
				return nil, auth.Configuration("step %s is not configured", name)
			}
			step, err = session.NewLdapAccount(*s.LdapAccount, o.dial(*s.Directory), uids)
		case strings.EqualFold(name, session.StepPermissions):
			if s.Permissions == nil {
				return nil, auth.Configuration("step %s is not configured", name)
			}
			step, err = session.NewPermissions(*s.Permissions, p.store)
		case strings.EqualFold(name, session.StepSambaPassword):
			if s.Directory == nil {
				return nil, auth.Configuration("step %s needs session.directory", name)
			}
			step, err = session.NewSambaPassword(*s.Directory, o.dial(*s.Directory), queue)
		case strings.EqualFold(name, session.StepHomeDirectory):
			if s.HomeDirectory == nil {
				return nil, auth.Configuration("step %s is not configured", name)
			}
			var (
				dir    directory.Config
				dialer directory.Dialer
			)
			if d := p.sessionDirectory(ns); d != nil {
				dir, dialer = *d, o.dial(*d)
			}
			step, err = session.NewHomeDirectory(*s.HomeDirectory, dir, dialer, commands)
		case strings.EqualFold(name, session.StepUserDetails):
			step, err = session.NewUserDetails(s.UserDetails, p.store)
		case strings.EqualFold(name, session.StepMoodleAuthorise):
			mcfg := p.moodleConfig(ns)
			if s.MoodleAuthorise == nil || mcfg == nil {
				return nil, auth.Configuration("step %s is not configured", name)
			}
			client, cerr := p.lmsClient(&mcfg.LMS, o)
			if cerr != nil {
				return nil, cerr
			}
			step, err = session.NewMoodleAuthorise(*s.MoodleAuthorise, client, p.store)
		default:
			return nil, auth.Configuration("unknown session step %q", name)
		}
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}
