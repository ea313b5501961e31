package sshtransport

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// Defaults applied by NewDriver to zero-valued Options fields.
const (
	DefaultConnectTimeout     = 20 * time.Second
	DefaultKeepaliveInterval  = 10 * time.Second
	DefaultKeepaliveMaxMissed = 3
	DefaultTermType           = "xterm-256color"
	DefaultCols               = 80
	DefaultRows               = 24
)

// AuthMethod selects how a connection authenticates.
type AuthMethod string

const (
	AuthPassword   AuthMethod = "password"
	AuthPrivateKey AuthMethod = "privateKey"
)

// Valid reports whether m is a supported auth method.
func (m AuthMethod) Valid() bool {
	return m == AuthPassword || m == AuthPrivateKey
}

// Params is everything needed to open one shell. Secrets are plaintext here
// and must not outlive the connect call that uses them.
type Params struct {
	ConnectionID   string
	Host           string
	Port           int
	Username       string
	AuthMethod     AuthMethod
	Password       string
	PrivateKeyPath string
	Passphrase     string
}

// Addr returns host:port suitable for net.Dial.
func (p Params) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p Params) Validate() error {
	switch {
	case p.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidParams)
	case p.Port < 1 || p.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidParams, p.Port)
	case p.Username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidParams)
	case !p.AuthMethod.Valid():
		return fmt.Errorf("%w: unsupported auth method %q", ErrInvalidParams, p.AuthMethod)
	case p.AuthMethod == AuthPrivateKey && p.PrivateKeyPath == "":
		return fmt.Errorf("%w: private key path is required", ErrInvalidParams)
	}
	return nil
}

// Options tune the driver. Zero values fall back to the package defaults,
// except HostKeyCallback which falls back to accepting any host key.
type Options struct {
	ConnectTimeout     time.Duration
	KeepaliveInterval  time.Duration
	KeepaliveMaxMissed int
	TermType           string
	Cols               int
	Rows               int
	HostKeyCallback    ssh.HostKeyCallback
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.KeepaliveInterval == 0 {
		o.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if o.KeepaliveMaxMissed <= 0 {
		o.KeepaliveMaxMissed = DefaultKeepaliveMaxMissed
	}
	if o.TermType == "" {
		o.TermType = DefaultTermType
	}
	if o.Cols <= 0 {
		o.Cols = DefaultCols
	}
	if o.Rows <= 0 {
		o.Rows = DefaultRows
	}
	if o.HostKeyCallback == nil {
		o.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	return o
}
