package sshtransport

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "deploy"
	testPassword = "s3cret"
)

type serverOptions struct {
	authorizedKey ssh.PublicKey
	// ignoreGlobalRequests leaves keepalive requests unanswered.
	ignoreGlobalRequests bool
}

// testSSHServer starts an in-process SSH server with password and public key
// auth. Shells echo stdin back with an "echo:" prefix, write "stderr:" lines
// for input containing "err", report window changes as "resize:CxR", and exit
// with status 0 on input containing "exit".
func testSSHServer(t *testing.T, opts serverOptions) (host string, port int) {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPassword {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("bad password")
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if opts.authorizedKey != nil && ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(opts.authorizedKey) {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("unknown public key")
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			netConn, err := listener.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handleTestConnection(netConn, config, opts)
			}()
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		<-done
	})

	addr := listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func handleTestConnection(netConn net.Conn, config *ssh.ServerConfig, opts serverOptions) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()

	if opts.ignoreGlobalRequests {
		go func() {
			for range reqs {
			}
		}()
	} else {
		go ssh.DiscardRequests(reqs)
	}

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go handleTestSession(ch, requests)
	}
}

func handleTestSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	for req := range requests {
		switch req.Type {
		case "pty-req":
			req.Reply(true, nil)

		case "window-change":
			if len(req.Payload) >= 8 {
				cols := binary.BigEndian.Uint32(req.Payload[0:4])
				rows := binary.BigEndian.Uint32(req.Payload[4:8])
				fmt.Fprintf(ch, "resize:%dx%d\n", cols, rows)
			}
			if req.WantReply {
				req.Reply(true, nil)
			}

		case "shell":
			req.Reply(true, nil)
			ch.Write([]byte("ready\n"))
			go func() {
				buf := make([]byte, 4096)
				for {
					n, err := ch.Read(buf)
					if n > 0 {
						in := string(buf[:n])
						if strings.Contains(in, "exit") {
							ch.Write([]byte("bye\n"))
							ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
							ch.Close()
							return
						}
						if strings.Contains(in, "err") {
							ch.Stderr().Write([]byte("stderr:" + in))
							continue
						}
						ch.Write([]byte("echo:" + in))
					}
					if err != nil {
						return
					}
				}
			}()

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// writeClientKey generates an ed25519 key, writes it to a temp file in
// OpenSSH format (encrypted when passphrase is non-empty) and returns the
// path and public key.
func writeClientKey(t *testing.T, passphrase string) (string, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshal client key: %v", err)
	}

	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write client key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	return path, sshPub
}

// collector accumulates a handle's events in the background.
type collector struct {
	mu       sync.Mutex
	data     strings.Builder
	terminal []Event
	done     chan struct{}
}

func collect(h *Handle) *collector {
	c := &collector{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		for ev := range h.Events() {
			c.mu.Lock()
			if ev.Terminal() {
				c.terminal = append(c.terminal, ev)
			} else {
				c.data.Write(ev.Data)
			}
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *collector) waitFor(t *testing.T, target string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := c.data.String()
		c.mu.Unlock()
		if strings.Contains(got, target) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Fatalf("timeout waiting for %q, got %q", target, c.data.String())
}

func (c *collector) waitClosed(t *testing.T) []Event {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("event stream was not closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}
