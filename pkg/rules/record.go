package rules

import "strings"

// Record is a flat attribute map evaluated by filter rules. Keys are stored
// lower-cased; use NewRecord or Set to populate it.
type Record map[string][]string

// NewRecord builds a Record from attrs, folding attribute names to lower case.
func NewRecord(attrs map[string][]string) Record {
	r := make(Record, len(attrs))
	for k, v := range attrs {
		r.Set(k, v...)
	}
	return r
}

// Set appends values to attribute name.
func (r Record) Set(name string, values ...string) {
	key := strings.ToLower(strings.TrimSpace(name))
	r[key] = append(r[key], values...)
}

// Values returns every value held for name.
func (r Record) Values(name string) []string {
	return r[strings.ToLower(strings.TrimSpace(name))]
}

// Has reports whether attribute name holds value.
func (r Record) Has(name, value string) bool {
	for _, v := range r.Values(name) {
		if v == value {
			return true
		}
	}
	return false
}
