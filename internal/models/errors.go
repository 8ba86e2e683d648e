package models

import "errors"

// Kind tags an error with the failure category the operator sees.
type Kind string

const (
	KindMissingCredential  Kind = "missing-credential"
	KindTokenInvalid       Kind = "token-invalid"
	KindNetworkUnreachable Kind = "network-unreachable"
	KindRateLimited        Kind = "rate-limited"
	KindMalformedCatalogID Kind = "malformed-catalog-id"
	KindCatalogUnreachable Kind = "catalog-unreachable"
	KindUpstream           Kind = "upstream-error"
	KindBatchFailure       Kind = "batch-failure"
)

// Error is a tagged failure. Message is operator-facing; Err keeps the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost tagged error in the chain, or "".
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return ""
}
