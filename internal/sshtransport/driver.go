// Package sshtransport opens interactive PTY shells over SSH and reports
// everything that happens on them as a stream of typed events.
//
// A Handle produces any number of Data events followed by exactly one
// terminal event (Closed or Errored), after which its Events channel is
// closed. Consumers must drain Events until it is closed.
package sshtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/sbjang123456/electron-ssh/internal/logutil"
	"golang.org/x/crypto/ssh"
)

// Driver dials SSH shells with a fixed set of Options.
type Driver struct {
	opts Options
}

func NewDriver(opts Options) *Driver {
	return &Driver{opts: opts.withDefaults()}
}

// Options returns the effective options after defaults were applied.
func (d *Driver) Options() Options {
	return d.opts
}

// Dial connects, authenticates and starts a PTY shell. The whole sequence
// is bounded by the driver's ConnectTimeout as well as ctx. On failure every
// partially opened resource is closed and a *ConnectError is returned.
func (d *Driver) Dial(ctx context.Context, p Params) (*Handle, error) {
	if err := p.Validate(); err != nil {
		return nil, newConnectError("validate", p, ErrInvalidParams, err)
	}

	auth, err := authMethods(p)
	if err != nil {
		return nil, newConnectError("auth", p, ErrKeyReadFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()

	dialer := net.Dialer{KeepAlive: 30 * time.Second}
	netConn, err := dialer.DialContext(ctx, "tcp", p.Addr())
	if err != nil {
		return nil, newConnectError("dial", p, classify(ctx, err), err)
	}

	// The handshake does not take a context, so bound it with a deadline
	// and tear the socket down if ctx ends first.
	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { netConn.Close() })

	h, op, err := d.open(netConn, p, auth)
	if !stop() {
		if err == nil {
			h.discard()
			op, err = "shell", ctx.Err()
		}
		netConn.Close()
		return nil, newConnectError(op, p, classify(ctx, err), err)
	}
	if err != nil {
		netConn.Close()
		return nil, newConnectError(op, p, classify(ctx, err), err)
	}
	netConn.SetDeadline(time.Time{})

	log.Printf("[ssh] shell opened to %s@%s", logutil.SanitizeForLog(p.Username), logutil.SanitizeForLog(p.Addr()))
	return h, nil
}

// open runs the handshake and shell setup. The returned op names the step
// that failed.
func (d *Driver) open(netConn net.Conn, p Params, auth []ssh.AuthMethod) (*Handle, string, error) {
	cfg := &ssh.ClientConfig{
		User:            p.Username,
		Auth:            auth,
		HostKeyCallback: d.opts.HostKeyCallback,
		Timeout:         d.opts.ConnectTimeout,
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, p.Addr(), cfg)
	if err != nil {
		return nil, "handshake", err
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, "session", fmt.Errorf("new session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(d.opts.TermType, d.opts.Rows, d.opts.Cols, modes); err != nil {
		session.Close()
		client.Close()
		return nil, "pty", fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, "shell", fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, "shell", fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, "shell", fmt.Errorf("stderr pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, "shell", fmt.Errorf("start shell: %w", err)
	}

	h := newHandle(client, session, stdin, d.opts)
	h.start(stdout, stderr)
	return h, "", nil
}

// isClosedErr reports errors produced by using an already closed
// connection or channel.
func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
