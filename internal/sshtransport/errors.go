package sshtransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/crypto/ssh/knownhosts"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrKeyReadFailed        = errors.New("private key could not be read")
	ErrConnectTimeout       = errors.New("connect timed out")
	ErrNetwork              = errors.New("network error")
	ErrRemoteClosed         = errors.New("remote closed the session")
	ErrHostKeyRejected      = errors.New("host key rejected")
	ErrInvalidParams        = errors.New("invalid connection parameters")
)

// ConnectError describes a failed Dial. It matches both its Kind sentinel
// and the underlying cause with errors.Is / errors.As.
type ConnectError struct {
	Op   string // "auth", "dial", "handshake", "session", "pty", "shell"
	Host string
	Port int
	Kind error
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v: %v", e.Op, e.Host, e.Port, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newConnectError(op string, p Params, kind, err error) *ConnectError {
	return &ConnectError{Op: op, Host: p.Host, Port: p.Port, Kind: kind, Err: err}
}

// classify maps a failure during dial/handshake/shell setup to a sentinel.
// ctx is the connect context; its expiry wins over whatever error the torn
// down connection produced.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return ErrConnectTimeout
		}
		return ctxErr
	}
	if isTimeout(err) {
		return ErrConnectTimeout
	}
	if isAuthFailure(err) {
		return ErrAuthenticationFailed
	}
	if isHostKeyFailure(err) {
		return ErrHostKeyRejected
	}
	return ErrNetwork
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

func isHostKeyFailure(err error) bool {
	var keyErr *knownhosts.KeyError
	var revoked *knownhosts.RevokedError
	return errors.As(err, &keyErr) || errors.As(err, &revoked)
}
