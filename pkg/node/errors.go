package node

import "fmt"

// Kind enumerates the error-kind vocabulary from spec §7. These are kinds,
// not Go types: every subsystem produces one of these strings inside an
// *Error (defined below) so the host process can
// branch on kind without type-asserting across package boundaries.
type Kind string

const (
	KindNetworkTimeout     Kind = "network_timeout"
	KindConnectionRefused  Kind = "connection_refused"
	KindReservationDenied  Kind = "reservation_denied"
	KindProviderLookupEmpty Kind = "provider_lookup_empty"
	KindManifestInvalid    Kind = "manifest_invalid"
	KindIntegrityMismatch  Kind = "integrity_mismatch"
	KindChunkMissing       Kind = "chunk_missing"
	KindPeerUnavailable    Kind = "peer_unavailable"
	KindPeerBlacklisted    Kind = "peer_blacklisted"
	KindRateLimited        Kind = "rate_limited"
	KindConfigInvalid      Kind = "config_invalid"
	KindIOError            Kind = "io_error"
	KindPermissionDenied   Kind = "permission_denied"
	KindPaymentRequired    Kind = "payment_required"
	KindInsufficientPayment Kind = "insufficient_payment"
	KindShutdown           Kind = "shutdown"
)

// Error is the event payload described in spec §7's "User-visible
// behavior" paragraph: kind, subsystem, summary and an optional retry
// hint, wrapping an underlying cause.
type Error struct {
	Kind      Kind
	Subsystem string
	Summary   string
	RetryHint string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Subsystem, e.Summary, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Subsystem, e.Summary)
}

func (e *Error) Unwrap() error { return e.Cause }

// Newf builds an Error with a formatted summary.
func Newf(kind Kind, subsystem string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Subsystem: subsystem, Summary: fmt.Sprintf(format, args...), Cause: cause}
}
