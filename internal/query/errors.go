package query

import (
	"fmt"

	"github.com/dnsscience/resolvcore/internal/packet"
)

// Kind enumerates the terminal error kinds a query can surface to its
// caller (spec.md §7 "Error kinds"). Exactly one Kind, or a successful
// *packet.Message, reaches a query's completion callback.
type Kind int

const (
	KindCodec Kind = iota
	KindNetwork
	KindTimeout
	KindNoAgents
	KindServerFailure
	KindBadDomainName
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindCodec:
		return "CodecError"
	case KindNetwork:
		return "NetworkError"
	case KindTimeout:
		return "Timeout"
	case KindNoAgents:
		return "NoAgents"
	case KindServerFailure:
		return "ServerFailure"
	case KindBadDomainName:
		return "BadDomainName"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the single terminal-result error type a query ever produces.
type Error struct {
	Kind   Kind
	Detail string
	Rcode  packet.Rcode
	Cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("query: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("query: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

func codecError(detail string, cause error) *Error {
	return &Error{Kind: KindCodec, Detail: detail, Cause: cause}
}

func networkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Cause: cause}
}

func timeoutError() *Error {
	return &Error{Kind: KindTimeout}
}

func noAgentsError(detail string) *Error {
	return &Error{Kind: KindNoAgents, Detail: detail}
}

func serverFailureError(rcode packet.Rcode) *Error {
	return &Error{Kind: KindServerFailure, Rcode: rcode, Detail: rcode.String()}
}

func badDomainNameError(detail string) *Error {
	return &Error{Kind: KindBadDomainName, Detail: detail}
}

func cancelledError() *Error {
	return &Error{Kind: KindCancelled}
}
