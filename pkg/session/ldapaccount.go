package session

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"math/big"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/directory"
	"github.com/marmos91/labgate/pkg/samba"
)

// LdapAccountConfig configures directory account creation.
type LdapAccountConfig struct {
	// PeopleBase is the DN below which "ou=<ldapou>" containers live.
	PeopleBase string `mapstructure:"people_base" yaml:"people_base" validate:"required"`

	// DefaultOU is used when the winning strategy supplies no ldapou.
	DefaultOU string `mapstructure:"default_ou" yaml:"default_ou" validate:"required"`

	// UIDSearchBase is scanned for uidNumber values in use. Defaults to
	// PeopleBase.
	UIDSearchBase string `mapstructure:"uid_search_base" yaml:"uid_search_base,omitempty"`

	MinUID   int    `mapstructure:"min_uid" yaml:"min_uid" validate:"gte=0"`
	GID      int    `mapstructure:"gid" yaml:"gid" validate:"gte=0"`
	HomeBase string `mapstructure:"home_base" yaml:"home_base"`
	Shell    string `mapstructure:"shell" yaml:"shell"`

	// SIDPrefix is the Samba domain SID, e.g. "S-1-5-21-1-2-3".
	SIDPrefix string `mapstructure:"sid_prefix" yaml:"sid_prefix" validate:"required"`

	ObjectClasses []string `mapstructure:"object_classes" yaml:"object_classes,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *LdapAccountConfig) ApplyDefaults() {
	if c.UIDSearchBase == "" {
		c.UIDSearchBase = c.PeopleBase
	}
	if c.MinUID == 0 {
		c.MinUID = 10000
	}
	if c.GID == 0 {
		c.GID = 10000
	}
	if c.HomeBase == "" {
		c.HomeBase = "/home"
	}
	if c.Shell == "" {
		c.Shell = "/bin/bash"
	}
	if len(c.ObjectClasses) == 0 {
		c.ObjectClasses = []string{"top", "person", "organizationalPerson", "inetOrgPerson", "posixAccount", "shadowAccount", "sambaSamAccount"}
	}
}

// maxUIDScan bounds the search for a free uid.
const maxUIDScan = 1 << 20

const generatedPasswordLength = 16

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// LdapAccount creates a POSIX and Samba account in the directory.
type LdapAccount struct {
	cfg    LdapAccountConfig
	domain *samba.Domain
	dialer directory.Dialer
	uids   UIDSource
	now    func() time.Time
}

// NewLdapAccount returns the step. uids may be nil to rely on the
// directory scan alone.
func NewLdapAccount(cfg LdapAccountConfig, dialer directory.Dialer, uids UIDSource) (*LdapAccount, error) {
	cfg.ApplyDefaults()
	if dialer == nil {
		return nil, auth.Configuration("ldap account step: no directory configured")
	}
	if cfg.PeopleBase == "" || cfg.DefaultOU == "" {
		return nil, auth.Configuration("ldap account step: people_base and default_ou are required")
	}
	if cfg.SIDPrefix == "" {
		return nil, auth.Configuration("ldap account step: sid_prefix is required")
	}
	domain, err := samba.ParseDomain(cfg.SIDPrefix)
	if err != nil {
		return nil, auth.Configuration("ldap account step: %v", err)
	}
	return &LdapAccount{cfg: cfg, domain: domain, dialer: dialer, uids: uids, now: time.Now}, nil
}

func (s *LdapAccount) Name() string { return StepLdapAccount }

// DN returns the entry DN for username in ou.
func (s *LdapAccount) DN(username, ou string) string {
	if ou == "" {
		ou = s.cfg.DefaultOU
	}
	return fmt.Sprintf("uid=%s,ou=%s,%s", ldap.EscapeDN(username), ldap.EscapeDN(ou), s.cfg.PeopleBase)
}

func (s *LdapAccount) Setup(ctx context.Context, res *auth.Result) error {
	info := res.Info
	ou, _ := info.Get(auth.LdapOU)
	dn := s.DN(info.Username(), ou)

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial directory: %w", err)
	}
	defer func() { _ = conn.Close() }()

	exists, err := directory.Exists(conn, dn)
	if err != nil {
		return fmt.Errorf("look up %s: %w", dn, err)
	}
	if exists {
		logger.DebugCtx(ctx, "Directory account already exists", logger.DN(dn))
		return nil
	}

	uid, err := s.nextUID(ctx, conn)
	if err != nil {
		return err
	}

	password, ok := info.Password()
	if !ok || password == "" {
		if password, err = randomPassword(generatedPasswordLength); err != nil {
			return err
		}
	}

	req, err := s.addRequest(dn, info, uid, password)
	if err != nil {
		return err
	}
	if err := conn.Add(req); err != nil {
		if directory.IsAlreadyExists(err) {
			// a concurrent login created it first
			logger.DebugCtx(ctx, "Directory account created concurrently", logger.DN(dn))
			return nil
		}
		return fmt.Errorf("add %s: %w", dn, err)
	}

	logger.InfoCtx(ctx, "Created directory account",
		logger.DN(dn),
		logger.Username(info.Username()),
		logger.KeyUID, uid)
	return nil
}

func (s *LdapAccount) addRequest(dn string, info auth.Info, uid int, password string) (*ldap.AddRequest, error) {
	first := orSpace(info.Get(auth.FirstName))
	last := orSpace(info.Get(auth.LastName))
	email := orSpace(info.Get(auth.Email))

	userPassword, err := sshaPassword(password)
	if err != nil {
		return nil, err
	}
	hashes := samba.HashPassword(password)
	lastSet := strconv.FormatInt(s.now().Unix(), 10)
	cn := strings.TrimSpace(first + " " + last)
	if cn == "" {
		cn = info.Username()
	}

	req := ldap.NewAddRequest(dn, nil)
	req.Attributes = []ldap.Attribute{
		directory.Attr("objectClass", s.cfg.ObjectClasses...),
		directory.Attr("uid", info.Username()),
		directory.Attr("cn", cn),
		directory.Attr("givenName", first),
		directory.Attr("sn", last),
		directory.Attr("mail", email),
		directory.Attr("uidNumber", strconv.Itoa(uid)),
		directory.Attr("gidNumber", strconv.Itoa(s.cfg.GID)),
		directory.Attr("homeDirectory", path.Join(s.cfg.HomeBase, info.Username())),
		directory.Attr("loginShell", s.cfg.Shell),
		directory.Attr("userPassword", userPassword),
		directory.Attr("sambaSID", s.domain.UserSID(uid)),
		directory.Attr("sambaPrimaryGroupSID", s.domain.GroupSID(s.cfg.GID)),
		directory.Attr("sambaLMPassword", hashes.LM),
		directory.Attr("sambaNTPassword", hashes.NT),
		directory.Attr("sambaAcctFlags", "[U          ]"),
		directory.Attr("sambaPwdLastSet", lastSet),
	}
	return req, nil
}

// nextUID returns the lowest uid at or above MinUID that is neither known
// to the host nor present in the directory.
func (s *LdapAccount) nextUID(ctx context.Context, conn directory.Conn) (int, error) {
	used := make(map[int]struct{})

	inDir, err := directory.IntValues(conn, s.cfg.UIDSearchBase, "uidNumber")
	if err != nil {
		return 0, fmt.Errorf("scan directory uids: %w", err)
	}
	for _, u := range inDir {
		used[u] = struct{}{}
	}

	if s.uids != nil {
		onHost, err := s.uids.UsedUIDs(ctx)
		if err != nil {
			return 0, err
		}
		for _, u := range onHost {
			used[u] = struct{}{}
		}
	}

	for uid := s.cfg.MinUID; uid < s.cfg.MinUID+maxUIDScan; uid++ {
		if _, taken := used[uid]; !taken {
			return uid, nil
		}
	}
	return 0, fmt.Errorf("no free uid at or above %d", s.cfg.MinUID)
}

func orSpace(v string, ok bool) string {
	if !ok || strings.TrimSpace(v) == "" {
		return " "
	}
	return v
}

// sshaPassword returns the RFC 2307 {SSHA} form of password.
func sshaPassword(password string) (string, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h := sha1.New()
	h.Write([]byte(password))
	h.Write(salt)
	return "{SSHA}" + base64.StdEncoding.EncodeToString(append(h.Sum(nil), salt...)), nil
}

func randomPassword(n int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = passwordAlphabet[idx.Int64()]
	}
	return string(b), nil
}
