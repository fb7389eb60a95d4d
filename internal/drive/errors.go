package drive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
)

// Kind classifies store errors so callers branch on classification instead
// of matching message substrings.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransient covers timeouts, connection resets, rate limits and
	// 5xx-class remote errors. Safe to retry.
	KindTransient
	// KindNotFound: the named folder/file does not exist. Never retried.
	KindNotFound
	// KindPermanent: auth, quota misconfiguration, bad request. Never retried.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error wraps a store failure with its classification and the operation
// and item name it happened on.
type Error struct {
	Kind Kind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("drive: %s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("drive: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from any error chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return classify(err)
}

func IsNotFound(err error) bool  { return KindOf(err) == KindNotFound }
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

func wrap(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: classify(err), Op: op, Name: name, Err: err}
}

// classify maps an underlying error to a Kind. The Drive client returns
// typed googleapi errors with status codes; substring heuristics remain only
// as a last resort for transport errors that arrive untyped.
func classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		switch {
		case ge.Code == 404:
			return KindNotFound
		case ge.Code == 429 || ge.Code >= 500:
			return KindTransient
		case ge.Code == 403 && rateLimited(ge):
			return KindTransient
		default:
			return KindPermanent
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTransient
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return KindTransient
	}

	// Last resort: untyped transport errors.
	msg := strings.ToLower(err.Error())
	for _, frag := range []string{"timeout", "connection reset", "temporarily", "unavailable", "eof"} {
		if strings.Contains(msg, frag) {
			return KindTransient
		}
	}
	return KindUnknown
}

// rateLimited detects the Drive quirk of reporting rate limits as 403 with
// a dedicated reason.
func rateLimited(ge *googleapi.Error) bool {
	for _, e := range ge.Errors {
		switch e.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
