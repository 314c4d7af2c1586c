package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failed provider call.
type Kind string

const (
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
	KindEmpty     Kind = "empty"
)

// StatusError is returned for a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("gateway: unexpected status %d: %s", e.Code, e.Body)
}

// classify maps a call error to a Kind. ctx is the attempt context; an
// expired deadline always classifies as a timeout.
func classify(ctx context.Context, err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		return KindStatus
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"i/o timeout", "tls handshake timeout", "deadline exceeded"} {
		if strings.Contains(msg, p) {
			return KindTimeout
		}
	}
	if strings.Contains(msg, "status") && containsHTTPCode(msg) {
		return KindStatus
	}

	return KindTransport
}

// containsHTTPCode reports whether msg mentions a 4xx or 5xx status code.
func containsHTTPCode(msg string) bool {
	for i := 0; i+3 <= len(msg); i++ {
		c := msg[i]
		if (c != '4' && c != '5') || !isDigit(msg[i+1]) || !isDigit(msg[i+2]) {
			continue
		}
		if i > 0 && isDigit(msg[i-1]) {
			continue
		}
		if i+3 < len(msg) && isDigit(msg[i+3]) {
			continue
		}
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
