package sshtransport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// authMethods builds the client auth chain for p. Errors are key read
// failures; callers classify them as ErrKeyReadFailed.
func authMethods(p Params) ([]ssh.AuthMethod, error) {
	switch p.AuthMethod {
	case AuthPassword:
		return []ssh.AuthMethod{
			ssh.Password(p.Password),
			ssh.KeyboardInteractive(passwordChallenge(p.Password)),
		}, nil
	case AuthPrivateKey:
		signer, err := loadSigner(p.PrivateKeyPath, p.Passphrase)
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("unsupported auth method %q", p.AuthMethod)
}

// passwordChallenge answers every hidden keyboard-interactive prompt with the
// stored password. Some servers only offer keyboard-interactive.
func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			if !echos[i] {
				answers[i] = password
			}
		}
		return answers, nil
	}
}

func loadSigner(keyPath, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(expandHome(keyPath))
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	if passphrase == "" {
		return nil, fmt.Errorf("key %s is encrypted and no passphrase is stored", keyPath)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("decrypting key: %w", err)
	}
	return signer, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// HostKeyCallback returns a callback that verifies against knownHostsPath
// when strict is set, and accepts any host key otherwise.
func HostKeyCallback(strict bool, knownHostsPath string) (ssh.HostKeyCallback, error) {
	if !strict {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(expandHome(knownHostsPath))
	if err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w", knownHostsPath, err)
	}
	return cb, nil
}
