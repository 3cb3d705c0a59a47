package models

import "errors"

// Common errors for control plane operations.
var (
	// Principal errors
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrDuplicatePrincipal = errors.New("principal already exists")

	// User class errors
	ErrGroupNotFound  = errors.New("user class not found")
	ErrDuplicateGroup = errors.New("user class already exists")

	// SSO mapping errors
	ErrMappingNotFound  = errors.New("sso mapping not found")
	ErrDuplicateMapping = errors.New("sso mapping already exists")
)
