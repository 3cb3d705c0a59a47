package kerberos

import (
	"strings"
)

// SplitPrincipal splits "name@REALM" into its parts. A login without a
// realm gets defaultRealm.
func SplitPrincipal(login, defaultRealm string) (name, realm string) {
	if i := strings.LastIndexByte(login, '@'); i >= 0 {
		return login[:i], login[i+1:]
	}
	return login, defaultRealm
}

// LocalName maps a principal to the local username. Explicit mappings
// win; otherwise principals of the home realm map to their name and
// foreign principals are not mapped.
func (c *Config) LocalName(name, realm string) (string, bool) {
	full := name + "@" + realm
	for _, m := range c.Principals {
		if m.Principal == full {
			return m.Username, true
		}
	}
	if strings.EqualFold(realm, c.Realm) {
		return name, true
	}
	return "", false
}
