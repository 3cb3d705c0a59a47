package directory

import (
	"errors"
	"strconv"

	"github.com/go-ldap/ldap/v3"

	"github.com/marmos91/labgate/pkg/rules"
)

// FindOne runs a subtree search below baseDN and returns the single match.
func FindOne(c Conn, baseDN, filter string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, 0, false, filter, attrs, nil,
	)
	res, err := c.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, ErrNoSuchEntry
		}
		if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			return nil, ErrAmbiguous
		}
		return nil, err
	}
	switch len(res.Entries) {
	case 0:
		return nil, ErrNoSuchEntry
	case 1:
		return res.Entries[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

// Lookup reads the entry at dn.
func Lookup(c Conn, dn string, attrs []string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases,
		1, 0, false, "(objectClass=*)", attrs, nil,
	)
	res, err := c.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, ErrNoSuchEntry
		}
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, ErrNoSuchEntry
	}
	return res.Entries[0], nil
}

// Exists reports whether an entry exists at dn.
func Exists(c Conn, dn string) (bool, error) {
	_, err := Lookup(c, dn, []string{"dn"})
	if errors.Is(err, ErrNoSuchEntry) {
		return false, nil
	}
	return err == nil, err
}

// IntValues collects the integer values of attr over every entry below
// baseDN carrying it. Unparsable values are skipped.
func IntValues(c Conn, baseDN, attr string) ([]int, error) {
	req := ldap.NewSearchRequest(
		baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, 0, false, "("+ldap.EscapeFilter(attr)+"=*)", []string{attr}, nil,
	)
	res, err := c.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, err
	}
	var out []int
	for _, e := range res.Entries {
		for _, v := range e.GetAttributeValues(attr) {
			if n, err := strconv.Atoi(v); err == nil {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// IsAuthFailure reports whether err is a directory answer meaning the
// presented credentials were rejected: invalid credentials, an unknown
// object, or a server refusing to bind a locked account.
func IsAuthFailure(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnwillingToPerform)
}

// IsAlreadyExists reports whether an add failed because the DN is taken.
func IsAlreadyExists(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists)
}

// Record flattens entry into a rule record. The entry DN is exposed as
// the "dn" attribute.
func Record(entry *ldap.Entry) rules.Record {
	rec := make(rules.Record, len(entry.Attributes)+1)
	rec.Set("dn", entry.DN)
	for _, a := range entry.Attributes {
		rec.Set(a.Name, a.Values...)
	}
	return rec
}

// Attr is a shorthand for building add request attributes.
func Attr(typeName string, values ...string) ldap.Attribute {
	return ldap.Attribute{Type: typeName, Vals: values}
}
