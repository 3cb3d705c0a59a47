package samba

import (
	"fmt"
	"strconv"
	"strings"
)

// SID is a Windows security identifier in its string form
// "S-{Revision}-{Authority}-{SubAuth1}-...-{SubAuthN}".
type SID struct {
	Revision       uint8
	Authority      uint64 // 48 bits
	SubAuthorities []uint32
}

// ParseSID parses a SID string.
func ParseSID(s string) (*SID, error) {
	if !strings.HasPrefix(s, "S-") {
		return nil, fmt.Errorf("invalid SID %q: must start with S-", s)
	}

	parts := strings.Split(s[2:], "-")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid SID %q: need at least revision and authority", s)
	}

	revision, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid SID revision: %w", err)
	}
	authority, err := strconv.ParseUint(parts[1], 10, 48)
	if err != nil {
		return nil, fmt.Errorf("invalid SID authority: %w", err)
	}

	sid := &SID{
		Revision:       uint8(revision),
		Authority:      authority,
		SubAuthorities: make([]uint32, len(parts)-2),
	}
	for i, p := range parts[2:] {
		val, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SID sub-authority %d: %w", i, err)
		}
		sid.SubAuthorities[i] = uint32(val)
	}
	return sid, nil
}

func (s *SID) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "S-%d-%d", s.Revision, s.Authority)
	for _, sa := range s.SubAuthorities {
		fmt.Fprintf(&b, "-%d", sa)
	}
	return b.String()
}

// WithRID returns a copy of s with rid appended.
func (s *SID) WithRID(rid uint32) *SID {
	subs := make([]uint32, len(s.SubAuthorities), len(s.SubAuthorities)+1)
	copy(subs, s.SubAuthorities)
	return &SID{Revision: s.Revision, Authority: s.Authority, SubAuthorities: append(subs, rid)}
}

// Domain allocates account SIDs below a Samba domain SID using the
// algorithmic RID mapping: user RID = uid*2 + 1000, group RID =
// gid*2 + 1001. The two ranges never collide.
type Domain struct {
	sid *SID
}

// ParseDomain parses a domain SID such as "S-1-5-21-1111-2222-3333".
// A trailing "-" is accepted.
func ParseDomain(prefix string) (*Domain, error) {
	sid, err := ParseSID(strings.TrimSuffix(prefix, "-"))
	if err != nil {
		return nil, err
	}
	if sid.Revision != 1 {
		return nil, fmt.Errorf("invalid domain SID %q: unsupported revision %d", prefix, sid.Revision)
	}
	if len(sid.SubAuthorities) == 0 {
		return nil, fmt.Errorf("invalid domain SID %q: no sub-authorities", prefix)
	}
	return &Domain{sid: sid}, nil
}

func (d *Domain) String() string { return d.sid.String() }

// UserSID returns the SID of the account with the given uidNumber.
func (d *Domain) UserSID(uid int) string {
	return d.sid.WithRID(uint32(uid)*2 + 1000).String()
}

// GroupSID returns the SID of the group with the given gidNumber.
func (d *Domain) GroupSID(gid int) string {
	return d.sid.WithRID(uint32(gid)*2 + 1001).String()
}
