package kerberos

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
)

// KDC error names that mean the credentials were rejected.
var rejectionCodes = []string{
	"KDC_ERR_PREAUTH_FAILED",
	"KDC_ERR_C_PRINCIPAL_UNKNOWN",
	"KDC_ERR_CLIENT_REVOKED",
	"KDC_ERR_KEY_EXPIRED",
	"KRB_AP_ERR_BAD_INTEGRITY",
}

// exchangeFunc performs the KDC exchanges for one login.
type exchangeFunc func(username, realm, password string) error

// Strategy verifies passwords against a KDC.
//
// Thread Safety: All methods are safe for concurrent use. The keytab can be
// hot-reloaded at runtime via ReloadKeytab().
type Strategy struct {
	cfg        Config
	krb5Conf   *krb5config.Config
	keytabPath string
	spn        string
	store      auth.PrincipalEnsurer
	namespace  string

	mu            sync.RWMutex
	keytab        *keytab.Keytab
	keytabManager *KeytabManager

	exchange exchangeFunc
}

// New loads krb5.conf and, when configured, the service keytab. store may
// be nil.
func New(cfg Config, store auth.PrincipalEnsurer, namespace string) (*Strategy, error) {
	if cfg.Realm == "" {
		return nil, auth.Configuration("kerberos realm is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	confPath := resolveKrb5ConfPath(cfg.Krb5Conf)
	krbCfg, err := krb5config.Load(confPath)
	if err != nil {
		return nil, auth.Configuration("load krb5.conf %s: %v", confPath, err)
	}

	s := &Strategy{
		cfg:        cfg,
		krb5Conf:   krbCfg,
		keytabPath: resolveKeytabPath(cfg.KeytabPath),
		spn:        resolveServicePrincipal(cfg.ServicePrincipal),
		store:      store,
		namespace:  namespace,
	}
	s.exchange = s.kdcExchange

	if s.keytabPath != "" {
		if s.spn == "" {
			return nil, auth.Configuration("kerberos keytab configured without service_principal")
		}
		kt, err := loadKeytab(s.keytabPath)
		if err != nil {
			return nil, auth.Configuration("load keytab %s: %v", s.keytabPath, err)
		}
		s.keytab = kt

		km := NewKeytabManager(s.keytabPath, s)
		if err := km.Start(); err != nil {
			// Hot-reload is optional; the loaded keytab stays in use.
			logger.Warn("Keytab hot-reload failed to start, continuing without it",
				logger.Path(s.keytabPath), logger.Err(err))
		}
		s.keytabManager = km
	}
	return s, nil
}

func (s *Strategy) Type() auth.Type { return auth.TypeKerberos }

// Keytab returns the current keytab, or nil when KDC verification is off.
func (s *Strategy) Keytab() *keytab.Keytab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keytab
}

// ReloadKeytab re-reads the keytab file and atomically swaps it. The old
// keytab stays active if the new one cannot be loaded.
func (s *Strategy) ReloadKeytab() error {
	kt, err := loadKeytab(s.keytabPath)
	if err != nil {
		return fmt.Errorf("reload keytab %s: %w", s.keytabPath, err)
	}
	s.mu.Lock()
	s.keytab = kt
	s.mu.Unlock()
	return nil
}

// Close stops keytab polling. Safe to call multiple times.
func (s *Strategy) Close() error {
	if s.keytabManager != nil {
		s.keytabManager.Stop()
	}
	return nil
}

// Authenticate runs an AS exchange for the principal. Rejections by the
// KDC are authentication failures; unreachable KDCs and timeouts are
// backend errors.
func (s *Strategy) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Info, error) {
	login := strings.TrimSpace(creds.Username)
	if login == "" || creds.Password == "" {
		return nil, auth.Failed("empty username or password")
	}
	name, realm := SplitPrincipal(login, s.cfg.Realm)
	local, ok := s.cfg.LocalName(name, realm)
	if !ok {
		return nil, auth.Failed("principal %s@%s is not mapped", name, realm)
	}

	if err := s.run(ctx, name, realm, creds.Password); err != nil {
		return nil, classify(err)
	}

	info := auth.NewInfo(s.namespace, local).
		Set("principal", name+"@"+realm).
		Set("realm", realm).
		SetPassword(creds.Password)
	if s.store != nil {
		if _, err := auth.EnsureLocalPrincipal(ctx, s.store, info); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// run bounds the exchange by the context and the configured timeout.
// gokrb5 has no context support, so an abandoned exchange finishes in
// the background.
func (s *Strategy) run(ctx context.Context, name, realm, password string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.exchange(name, realm, password) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Strategy) kdcExchange(name, realm, password string) error {
	cl := client.NewWithPassword(name, realm, password, s.krb5Conf, client.DisablePAFXFAST(true))
	defer cl.Destroy()

	if err := cl.Login(); err != nil {
		return err
	}

	kt := s.Keytab()
	if kt == nil {
		return nil
	}
	tkt, _, err := cl.GetServiceTicket(s.spn)
	if err != nil {
		return fmt.Errorf("service ticket for %s: %w", s.spn, err)
	}
	if err := tkt.DecryptEncPart(kt, nil); err != nil {
		return fmt.Errorf("kdc verification failed: %w", err)
	}
	return nil
}

func classify(err error) error {
	if auth.IsTimeout(err) {
		return auth.Backend(fmt.Errorf("kdc exchange: %w", err))
	}
	msg := err.Error()
	for _, code := range rejectionCodes {
		if strings.Contains(msg, code) {
			return auth.Failed("kdc rejected login: %s", code)
		}
	}
	return auth.Backend(err)
}

var _ auth.Strategy = (*Strategy)(nil)
