package auth

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy.
var (
	// ErrConfiguration means the installation is misconfigured: no
	// strategies, unknown strategy types, missing connection parameters,
	// or a provisioning step whose required strategy did not run.
	ErrConfiguration = errors.New("auth: configuration error")

	// ErrAuthenticationFailed is an expected rejection: wrong password,
	// unknown principal, disabled account or unrecognized hash format.
	ErrAuthenticationFailed = errors.New("auth: authentication failed")

	// ErrBackendUnavailable means a credential backend could not be
	// reached or answered with an unexpected protocol error.
	ErrBackendUnavailable = errors.New("auth: backend unavailable")
)

// Failed returns an authentication failure carrying reason for the logs.
func Failed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthenticationFailed, fmt.Sprintf(format, args...))
}

// Configuration returns a configuration error.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Backend wraps err as a backend error unless it is already classified.
// Context cancellation and deadlines count as backend errors.
func Backend(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// IsFailure reports whether err is an expected authentication failure.
func IsFailure(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

// IsTimeout reports whether err came from an expired or cancelled context.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// PublicMessage returns the message safe to show to the person logging
// in. Backend details never leave the logs.
func PublicMessage(err error) string {
	if err == nil || IsFailure(err) {
		return "authentication failed"
	}
	return "internal server error"
}
