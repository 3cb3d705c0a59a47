// Package directorytest provides an in-memory directory for tests.
package directorytest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"

	"github.com/marmos91/labgate/pkg/directory"
)

// Server is an in-memory directory implementing directory.Dialer.
// Filters support equality, presence, '&', '|' and '!'.
type Server struct {
	mu        sync.Mutex
	entries   map[string]*ldap.Entry
	passwords map[string]string

	// DialErr, when set, is returned by Dial.
	DialErr error
	// SearchErr, when set, is returned by every search.
	SearchErr error

	Binds    int
	Adds     int
	Modifies int
}

// NewServer returns an empty directory.
func NewServer() *Server {
	return &Server{
		entries:   make(map[string]*ldap.Entry),
		passwords: make(map[string]string),
	}
}

func key(dn string) string { return strings.ToLower(strings.ReplaceAll(dn, " ", "")) }

// Put stores an entry. attrs maps attribute names to values.
func (s *Server) Put(dn string, attrs map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(dn)] = ldap.NewEntry(dn, attrs)
}

// SetPassword makes dn bindable with password.
func (s *Server) SetPassword(dn, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwords[key(dn)] = password
}

// Entry returns the stored entry at dn, or nil.
func (s *Server) Entry(dn string) *ldap.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key(dn)]
}

// Dial implements directory.Dialer.
func (s *Server) Dial(ctx context.Context) (directory.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.DialErr != nil {
		return nil, s.DialErr
	}
	return &session{srv: s}, nil
}

type session struct {
	srv    *Server
	closed bool
}

func (c *session) Bind(username, password string) error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Binds++

	want, ok := s.passwords[key(username)]
	if !ok || want != password || password == "" {
		return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
	}
	return nil
}

func (c *session) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SearchErr != nil {
		return nil, s.SearchErr
	}

	f, err := parseFilter(req.Filter)
	if err != nil {
		return nil, ldap.NewError(ldap.ErrorFilterCompile, err)
	}

	base := key(req.BaseDN)
	res := &ldap.SearchResult{}
	switch req.Scope {
	case ldap.ScopeBaseObject:
		e, ok := s.entries[base]
		if !ok {
			return nil, ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object %q", req.BaseDN))
		}
		if f.match(e) {
			res.Entries = append(res.Entries, copyEntry(e))
		}
	default:
		for k, e := range s.entries {
			if (k == base || strings.HasSuffix(k, ","+base)) && f.match(e) {
				res.Entries = append(res.Entries, copyEntry(e))
			}
		}
	}

	if req.SizeLimit > 0 && len(res.Entries) > req.SizeLimit {
		return nil, ldap.NewError(ldap.LDAPResultSizeLimitExceeded, errors.New("size limit exceeded"))
	}
	return res, nil
}

func (c *session) Add(req *ldap.AddRequest) error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(req.DN)
	if _, ok := s.entries[k]; ok {
		return ldap.NewError(ldap.LDAPResultEntryAlreadyExists, fmt.Errorf("entry %q exists", req.DN))
	}
	attrs := make(map[string][]string, len(req.Attributes))
	for _, a := range req.Attributes {
		attrs[a.Type] = append([]string(nil), a.Vals...)
	}
	s.entries[k] = ldap.NewEntry(req.DN, attrs)
	s.Adds++
	return nil
}

func (c *session) Modify(req *ldap.ModifyRequest) error {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key(req.DN)]
	if !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object %q", req.DN))
	}

	attrs := make(map[string][]string, len(e.Attributes))
	for _, a := range e.Attributes {
		attrs[a.Name] = a.Values
	}
	for _, ch := range req.Changes {
		name := ch.Modification.Type
		switch ch.Operation {
		case ldap.AddAttribute:
			attrs[name] = append(attrs[name], ch.Modification.Vals...)
		case ldap.DeleteAttribute:
			delete(attrs, name)
		case ldap.ReplaceAttribute:
			attrs[name] = append([]string(nil), ch.Modification.Vals...)
		}
	}
	s.entries[key(req.DN)] = ldap.NewEntry(e.DN, attrs)
	s.Modifies++
	return nil
}

func (c *session) Close() error {
	c.closed = true
	return nil
}

func copyEntry(e *ldap.Entry) *ldap.Entry {
	attrs := make(map[string][]string, len(e.Attributes))
	for _, a := range e.Attributes {
		attrs[a.Name] = append([]string(nil), a.Values...)
	}
	return ldap.NewEntry(e.DN, attrs)
}

// filter is a parsed search filter.
type filter struct {
	op       byte // '&', '|', '!', '=' or '*' for presence
	attr     string
	value    string
	children []filter
}

func (f filter) match(e *ldap.Entry) bool {
	switch f.op {
	case '&':
		for _, c := range f.children {
			if !c.match(e) {
				return false
			}
		}
		return true
	case '|':
		for _, c := range f.children {
			if c.match(e) {
				return true
			}
		}
		return false
	case '!':
		return !f.children[0].match(e)
	case '*':
		return len(e.GetEqualFoldAttributeValues(f.attr)) > 0
	default:
		for _, v := range e.GetEqualFoldAttributeValues(f.attr) {
			if strings.EqualFold(v, f.value) {
				return true
			}
		}
		return false
	}
}

func parseFilter(s string) (filter, error) {
	f, rest, err := parseOne(strings.TrimSpace(s))
	if err != nil {
		return filter{}, err
	}
	if rest != "" {
		return filter{}, fmt.Errorf("trailing data %q", rest)
	}
	return f, nil
}

func parseOne(s string) (filter, string, error) {
	if !strings.HasPrefix(s, "(") {
		return filter{}, "", fmt.Errorf("expected '(' in %q", s)
	}
	s = s[1:]
	if s == "" {
		return filter{}, "", errors.New("unterminated filter")
	}

	switch s[0] {
	case '&', '|', '!':
		f := filter{op: s[0]}
		s = s[1:]
		for strings.HasPrefix(s, "(") {
			child, rest, err := parseOne(s)
			if err != nil {
				return filter{}, "", err
			}
			f.children = append(f.children, child)
			s = rest
		}
		if !strings.HasPrefix(s, ")") || (f.op == '!' && len(f.children) != 1) {
			return filter{}, "", fmt.Errorf("malformed %q filter", string(f.op))
		}
		return f, s[1:], nil
	}

	end := strings.IndexByte(s, ')')
	if end < 0 {
		return filter{}, "", errors.New("unterminated filter")
	}
	item := s[:end]
	eq := strings.IndexByte(item, '=')
	if eq <= 0 {
		return filter{}, "", fmt.Errorf("malformed item %q", item)
	}
	f := filter{op: '=', attr: item[:eq], value: unescape(item[eq+1:])}
	if item[eq+1:] == "*" {
		f.op = '*'
	}
	return f, s[end+1:], nil
}

// unescape decodes \XX hex escapes produced by ldap.EscapeFilter.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+2 < len(s) {
			if b, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				sb.WriteByte(byte(b))
				i += 2
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
