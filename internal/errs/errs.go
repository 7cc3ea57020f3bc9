// Package errs classifies core errors by the severity taxonomy in §7:
// Info and Warning are logged and ignored by the caller, Critical tears
// down the connection that produced them.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Severity is how far an error propagates before it stops being "just logged".
type Severity int

const (
	// Info is logged and otherwise ignored: stale handshake replies,
	// transfer-id mismatches, redundant identical chunks.
	Info Severity = iota
	// Warning is logged and ignored: wrong download request id, duplicate
	// sequence id.
	Warning
	// Critical aborts processing of the current datagram and closes the
	// connection: hash failures, content divergence, free-list exhaustion,
	// tick-id gaps, socket I/O errors.
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// severityKey carries a Severity through cockroachdb/errors' wrap chain.
type severityKey struct{}

// Classify wraps err with sev so Severity(err) can recover it later, even
// after further wrapping with errors.Wrap.
func Classify(sev Severity, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithDetail(&severityError{sev: sev, cause: err}, sev.String())
}

// New builds a classified error from a format string, in the shape of
// errors.Newf.
func New(sev Severity, format string, args ...interface{}) error {
	return Classify(sev, errors.Newf(format, args...))
}

type severityError struct {
	sev   Severity
	cause error
}

func (e *severityError) Error() string { return e.cause.Error() }
func (e *severityError) Unwrap() error { return e.cause }
func (e *severityError) Cause() error  { return e.cause }

// SeverityOf recovers the classified severity of err, defaulting to
// Critical for any error that was never explicitly classified — an
// unclassified failure is treated as the safest (most conservative) case.
func SeverityOf(err error) Severity {
	var se *severityError
	if errors.As(err, &se) {
		return se.sev
	}
	return Critical
}

// IsCritical reports whether err should close the connection that raised it.
func IsCritical(err error) bool {
	return err != nil && SeverityOf(err) == Critical
}

// Aggregate collects non-Critical errors encountered while processing a
// batch of commands from a single datagram, per §7: "the client and host
// logic iterate inbound commands and aggregate non-critical errors; the
// first Critical error aborts the datagram's processing and surfaces
// upward".
type Aggregate struct {
	errs []error
}

// Add records err. It returns true if err was Critical (caller should stop
// iterating and surface err).
func (a *Aggregate) Add(err error) bool {
	if err == nil {
		return false
	}
	a.errs = append(a.errs, err)
	return IsCritical(err)
}

// Errs returns every error recorded so far, Critical or not.
func (a *Aggregate) Errs() []error { return a.errs }

func (a *Aggregate) Error() string {
	return fmt.Sprintf("%d error(s) while processing datagram", len(a.errs))
}
