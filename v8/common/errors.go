package common

import (
	"strings"

	"github.com/brickingsoft/errors"
)

// Error kinds returned by the decoder. Every error produced by this module
// matches exactly one of them under errors.Is.
var (
	ErrConfiguration = errors.Define("configuration error")
	ErrEvaluation    = errors.Define("evaluation error")
	ErrMemoryAccess  = errors.Define("memory access error")
)

const (
	ErrMetaPkgKey  = "pkg"
	ErrMetaOpKey   = "op"
	ErrMetaAddrKey = "address"
)

// IsConfigurationError reports whether err is missing or invalid configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsEvaluationError reports whether err is a malformed or out-of-range input.
func IsEvaluationError(err error) bool {
	return errors.Is(err, ErrEvaluation)
}

// IsMemoryAccessError reports whether err is an unreadable target address.
func IsMemoryAccessError(err error) bool {
	return errors.Is(err, ErrMemoryAccess)
}

// Constructors report the caller of the helper, not the helper itself.
const callerDepth = 3

// ConfigurationError builds an ErrConfiguration for package pkg.
func ConfigurationError(pkg, op, detail string) error {
	return errors.From(
		ErrConfiguration,
		errors.WithDescription(detail),
		errors.WithMeta(ErrMetaPkgKey, pkg),
		errors.WithMeta(ErrMetaOpKey, op),
		errors.WithDepth(callerDepth),
	)
}

// EvaluationError builds an ErrEvaluation, optionally wrapping cause.
func EvaluationError(pkg, op, detail string, cause error) error {
	if cause == nil {
		return errors.From(
			ErrEvaluation,
			errors.WithDescription(detail),
			errors.WithMeta(ErrMetaPkgKey, pkg),
			errors.WithMeta(ErrMetaOpKey, op),
			errors.WithDepth(callerDepth),
		)
	}
	return errors.From(
		ErrEvaluation,
		errors.WithDescription(detail),
		errors.WithMeta(ErrMetaPkgKey, pkg),
		errors.WithMeta(ErrMetaOpKey, op),
		errors.WithDepth(callerDepth),
		errors.WithWrap(cause),
	)
}

// MemoryAccessError builds an ErrMemoryAccess for a read at addr.
func MemoryAccessError(pkg, op string, addr uint64, cause error) error {
	if cause == nil {
		return errors.From(
			ErrMemoryAccess,
			errors.WithMeta(ErrMetaPkgKey, pkg),
			errors.WithMeta(ErrMetaOpKey, op),
			errors.WithMeta(ErrMetaAddrKey, Hex(addr)),
			errors.WithDepth(callerDepth),
		)
	}
	return errors.From(
		ErrMemoryAccess,
		errors.WithMeta(ErrMetaPkgKey, pkg),
		errors.WithMeta(ErrMetaOpKey, op),
		errors.WithMeta(ErrMetaAddrKey, Hex(addr)),
		errors.WithDepth(callerDepth),
		errors.WithWrap(cause),
	)
}

// Describe renders err on one line, e.g.
// "configuration error: cage base not configured (tagged.decompress)".
// Error() of an enhanced error is only its kind, so the description, the
// operation and the wrapped causes are appended here.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(err.Error())
	describeDetails(&b, ee)
	return b.String()
}

func describeDetails(b *strings.Builder, ee *errors.EnhancedError) {
	if ee.Description != "" {
		b.WriteString(": ")
		b.WriteString(ee.Description)
	}
	var pkg, op, addr string
	for _, m := range ee.Meta {
		switch m.Key {
		case ErrMetaPkgKey:
			pkg = m.Value
		case ErrMetaOpKey:
			op = m.Value
		case ErrMetaAddrKey:
			addr = m.Value
		}
	}
	where := op
	if pkg != "" && op != "" {
		where = pkg + "." + op
	}
	if addr != "" {
		where = strings.TrimSpace(where + " at " + addr)
	}
	if where != "" {
		b.WriteString(" (")
		b.WriteString(where)
		b.WriteString(")")
	}
	if ee.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(ee.Wrapped.Message)
		describeDetails(b, ee.Wrapped)
	}
}
