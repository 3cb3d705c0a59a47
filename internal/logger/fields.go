package logger

import "log/slog"

// Standard field keys. Use them consistently so log lines can be
// aggregated across strategies and provisioning steps.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"

	// Identity
	KeyUsername  = "username"
	KeyNamespace = "namespace"
	KeySubject   = "subject_id" // federation subject identifier
	KeyUID       = "uid"
	KeyGID       = "gid"

	// Pipeline
	KeyStrategy = "strategy" // authentication strategy type
	KeyStep     = "step"     // provisioning step name
	KeyOutcome  = "outcome"

	// Backends
	KeyDN      = "dn"
	KeyFilter  = "filter"
	KeyURL     = "url"
	KeyPath    = "path"
	KeyScript  = "script"
	KeyGroup   = "group"
	KeyRule    = "rule"
	KeyAdded   = "added"
	KeyRemoved = "removed"
	KeyCount   = "count"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

// Err returns a slog.Attr for an error value
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Username returns a slog.Attr for a login name
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Namespace returns a slog.Attr for an institution namespace
func Namespace(ns string) slog.Attr {
	return slog.String(KeyNamespace, ns)
}

// Strategy returns a slog.Attr for an authentication strategy type
func Strategy(t string) slog.Attr {
	return slog.String(KeyStrategy, t)
}

// Step returns a slog.Attr for a provisioning step name
func Step(name string) slog.Attr {
	return slog.String(KeyStep, name)
}

// DN returns a slog.Attr for a directory distinguished name
func DN(dn string) slog.Attr {
	return slog.String(KeyDN, dn)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Group returns a slog.Attr for a user class name
func Group(name string) slog.Attr {
	return slog.String(KeyGroup, name)
}

// DurationMs returns a slog.Attr for an elapsed time in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
