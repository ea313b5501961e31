// Package crypto encrypts connection secrets at rest with a fernet key that
// is generated on first use and persisted in the settings table.
package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/sbjang123456/electron-ssh/internal/database"
	"gorm.io/gorm"
)

const keySetting = "fernet_key"

// ErrInvalidToken is returned when a stored value was not produced by the
// current key or has been tampered with.
var ErrInvalidToken = errors.New("decrypt: invalid token")

type Cipher struct {
	key *fernet.Key
}

// NewCipher builds a Cipher from an encoded fernet key.
func NewCipher(encoded string) (*Cipher, error) {
	key, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode fernet key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// LoadOrCreate returns the Cipher for the key stored in db, generating and
// saving a new key when none exists yet.
func LoadOrCreate(db *gorm.DB) (*Cipher, error) {
	keyStr, err := database.GetSetting(db, keySetting)
	if err == nil {
		return NewCipher(keyStr)
	}
	if !errors.Is(err, database.ErrSettingNotFound) {
		return nil, fmt.Errorf("load fernet key: %w", err)
	}

	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, fmt.Errorf("generate fernet key: %w", err)
	}
	if err := database.SetSetting(db, keySetting, k.Encode()); err != nil {
		return nil, fmt.Errorf("save fernet key: %w", err)
	}
	return &Cipher{key: &k}, nil
}

// Encrypt returns a fernet token for plaintext. Empty input stays empty so
// that "no secret" survives a round trip.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), c.key)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	return string(tok), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(ciphertext), 0*time.Second, []*fernet.Key{c.key})
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}

func Mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) > 4 {
		return "****" + value[len(value)-4:]
	}
	return "****"
}
