// Package rules evaluates the declarative mappings that turn directory and
// LMS attributes into user class names.
//
// Two matchers are provided:
//
//   - Filter rules of the form
//
//     dept=eng&role!=staff|ou=lab{students,lab-users}
//
//     parsed once into an expression tree where '&' binds tighter than '|'.
//     Parentheses may group sub-expressions; a value may itself contain
//     parentheses, as in ou=Lab (A), as long as they are balanced. Comparisons against a
//     multi-valued attribute test membership. Attribute names are matched
//     case-insensitively.
//
//   - Wildcard patterns where '*' stands for zero or more characters.
//
// Rules are immutable once parsed and safe for concurrent use.
package rules
