package rules

import "strings"

// LegacyScan evaluates expr with the historical token scan: the comparisons
// are read left to right, '&' short-circuits on false and '|' on true, and
// the whole scan is repeated right to left. The expression applies if
// either pass returns true. Parentheses are not understood.
func LegacyScan(expr string, r Record) bool {
	terms, ops := tokenize(expr)
	if len(terms) == 0 {
		return false
	}
	if scan(terms, ops, r) {
		return true
	}

	rt := make([]string, len(terms))
	ro := make([]byte, len(ops))
	for i := range terms {
		rt[len(terms)-1-i] = terms[i]
	}
	for i := range ops {
		ro[len(ops)-1-i] = ops[i]
	}
	return scan(rt, ro, r)
}

func tokenize(expr string) ([]string, []byte) {
	var (
		terms []string
		ops   []byte
		start int
	)
	for i := 0; i < len(expr); i++ {
		if expr[i] == '&' || expr[i] == '|' {
			terms = append(terms, expr[start:i])
			ops = append(ops, expr[i])
			start = i + 1
		}
	}
	return append(terms, expr[start:]), ops
}

func scan(terms []string, ops []byte, r Record) bool {
	val := legacyCompare(terms[0], r)
	for i, op := range ops {
		switch {
		case op == '&' && !val:
			return false
		case op == '|' && val:
			return true
		}
		val = legacyCompare(terms[i+1], r)
	}
	return val
}

func legacyCompare(term string, r Record) bool {
	if i := strings.Index(term, "!="); i >= 0 {
		return !r.Has(strings.TrimSpace(term[:i]), strings.TrimSpace(term[i+2:]))
	}
	if i := strings.IndexByte(term, '='); i >= 0 {
		return r.Has(strings.TrimSpace(term[:i]), strings.TrimSpace(term[i+1:]))
	}
	return false
}
