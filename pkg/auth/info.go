package auth

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Well-known Info properties.
const (
	FirstName     = "first_name"
	LastName      = "last_name"
	Email         = "email"
	DisplayName   = "display_name"
	HomeDirectory = "homedirectory"
	LdapOU        = "ldapou"
)

// Info exposes what the winning strategy knows about the principal.
// Property names are case-insensitive.
type Info interface {
	// Username is the canonical local name of the principal.
	Username() string
	Namespace() string

	// Get returns the first non-empty value of property.
	Get(property string) (string, bool)
	Values(property string) []string

	// Password returns the plaintext secret presented at login. Strategies
	// that never see a password (SSO) return false.
	Password() (string, bool)
}

// DirectoryEntry is implemented by Info values backed by a directory
// entry.
type DirectoryEntry interface {
	Entry() *ldap.Entry
}

// LMSAccount is implemented by Info values backed by a Moodle user.
type LMSAccount interface {
	LMSUserID() int64
	// LMSUsername is the username as stored in Moodle, without any local
	// prefix.
	LMSUsername() string
}

// BasicInfo is a map-backed Info.
type BasicInfo struct {
	namespace string
	username  string
	attrs     map[string][]string
	password  string
	hasPass   bool
}

// NewInfo returns an empty Info for namespace:username.
func NewInfo(namespace, username string) *BasicInfo {
	return &BasicInfo{
		namespace: namespace,
		username:  username,
		attrs:     make(map[string][]string),
	}
}

// Set replaces the values of property.
func (i *BasicInfo) Set(property string, values ...string) *BasicInfo {
	i.attrs[strings.ToLower(property)] = values
	return i
}

// SetPassword records the plaintext password presented at login.
func (i *BasicInfo) SetPassword(password string) *BasicInfo {
	i.password, i.hasPass = password, true
	return i
}

func (i *BasicInfo) Username() string  { return i.username }
func (i *BasicInfo) Namespace() string { return i.namespace }

func (i *BasicInfo) Get(property string) (string, bool) {
	for _, v := range i.attrs[strings.ToLower(property)] {
		if v != "" {
			return v, true
		}
	}
	return "", false
}

func (i *BasicInfo) Values(property string) []string {
	return i.attrs[strings.ToLower(property)]
}

func (i *BasicInfo) Password() (string, bool) {
	return i.password, i.hasPass
}
