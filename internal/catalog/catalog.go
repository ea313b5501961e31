// Package catalog stores saved connections. Secrets are encrypted with the
// crypto package before they reach the database and are only decrypted by
// Resolve, on the connect path.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sbjang123456/electron-ssh/internal/crypto"
	"github.com/sbjang123456/electron-ssh/internal/database"
	"github.com/sbjang123456/electron-ssh/internal/logutil"
	"github.com/sbjang123456/electron-ssh/internal/sshtransport"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("connection not found")

// ValidationError reports a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Record is a connection as shown to callers: metadata plus flags telling
// whether secrets are stored, never the secrets themselves.
type Record struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Host            string                  `json:"host"`
	Port            int                     `json:"port"`
	Username        string                  `json:"username"`
	AuthMethod      sshtransport.AuthMethod `json:"auth_method"`
	PrivateKeyPath  string                  `json:"private_key_path,omitempty"`
	HasPassword     bool                    `json:"has_password"`
	HasPassphrase   bool                    `json:"has_passphrase"`
	LastConnectedAt *time.Time              `json:"last_connected_at"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// Input creates a connection. Empty secrets mean none is stored.
type Input struct {
	Name           string                  `json:"name" yaml:"name"`
	Host           string                  `json:"host" yaml:"host"`
	Port           int                     `json:"port" yaml:"port"`
	Username       string                  `json:"username" yaml:"username"`
	AuthMethod     sshtransport.AuthMethod `json:"auth_method" yaml:"auth_method"`
	Password       string                  `json:"password,omitempty" yaml:"password,omitempty"`
	PrivateKeyPath string                  `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`
	Passphrase     string                  `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
}

// Patch updates a connection. Nil fields are left alone; for secrets an
// empty string clears the stored value.
type Patch struct {
	Name           *string                  `json:"name"`
	Host           *string                  `json:"host"`
	Port           *int                     `json:"port"`
	Username       *string                  `json:"username"`
	AuthMethod     *sshtransport.AuthMethod `json:"auth_method"`
	Password       *string                  `json:"password"`
	PrivateKeyPath *string                  `json:"private_key_path"`
	Passphrase     *string                  `json:"passphrase"`
}

type Store struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

func New(db *gorm.DB, cipher *crypto.Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// List returns every connection ordered by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var rows []database.Connection
	if err := s.db.WithContext(ctx).Order("name, created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	records := make([]Record, len(rows))
	for i, c := range rows {
		records[i] = toRecord(c)
	}
	return records, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	c, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	r := toRecord(*c)
	return &r, nil
}

func (s *Store) Create(ctx context.Context, in Input) (*Record, error) {
	c, err := s.create(s.db.WithContext(ctx), in)
	if err != nil {
		return nil, err
	}
	log.Printf("[catalog] created connection %s (%s)", c.ID, logutil.SanitizeForLog(c.Name))
	r := toRecord(*c)
	return &r, nil
}

func (s *Store) create(tx *gorm.DB, in Input) (*database.Connection, error) {
	c := &database.Connection{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(in.Name),
		Host:           strings.TrimSpace(in.Host),
		Port:           in.Port,
		Username:       strings.TrimSpace(in.Username),
		AuthMethod:     string(in.AuthMethod),
		PrivateKeyPath: strings.TrimSpace(in.PrivateKeyPath),
	}
	normalize(c)
	if err := validate(c); err != nil {
		return nil, err
	}
	if err := s.setSecret(&c.EncryptedPassword, in.Password); err != nil {
		return nil, err
	}
	if err := s.setSecret(&c.EncryptedPassphrase, in.Passphrase); err != nil {
		return nil, err
	}
	if err := tx.Create(c).Error; err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	return c, nil
}

func (s *Store) Update(ctx context.Context, id string, p Patch) (*Record, error) {
	db := s.db.WithContext(ctx)
	c, err := s.load(db, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Host != nil {
		c.Host = strings.TrimSpace(*p.Host)
	}
	if p.Port != nil {
		c.Port = *p.Port
	}
	if p.Username != nil {
		c.Username = strings.TrimSpace(*p.Username)
	}
	if p.AuthMethod != nil {
		c.AuthMethod = string(*p.AuthMethod)
	}
	if p.PrivateKeyPath != nil {
		c.PrivateKeyPath = strings.TrimSpace(*p.PrivateKeyPath)
	}
	normalize(c)
	if err := validate(c); err != nil {
		return nil, err
	}
	if p.Password != nil {
		if err := s.setSecret(&c.EncryptedPassword, *p.Password); err != nil {
			return nil, err
		}
	}
	if p.Passphrase != nil {
		if err := s.setSecret(&c.EncryptedPassphrase, *p.Passphrase); err != nil {
			return nil, err
		}
	}

	if err := db.Save(c).Error; err != nil {
		return nil, fmt.Errorf("update connection: %w", err)
	}
	r := toRecord(*c)
	return &r, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Connection{})
	if res.Error != nil {
		return fmt.Errorf("delete connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	log.Printf("[catalog] deleted connection %s", logutil.SanitizeForLog(id))
	return nil
}

// Resolve returns the decrypted connect parameters for id, or (nil, nil)
// when no such connection exists.
func (s *Store) Resolve(ctx context.Context, id string) (*sshtransport.Params, error) {
	c, err := s.load(s.db.WithContext(ctx), id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	password, err := s.cipher.Decrypt(c.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("decrypt password for %s: %w", id, err)
	}
	passphrase, err := s.cipher.Decrypt(c.EncryptedPassphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt passphrase for %s: %w", id, err)
	}
	return &sshtransport.Params{
		ConnectionID:   c.ID,
		Host:           c.Host,
		Port:           c.Port,
		Username:       c.Username,
		AuthMethod:     sshtransport.AuthMethod(c.AuthMethod),
		Password:       password,
		PrivateKeyPath: c.PrivateKeyPath,
		Passphrase:     passphrase,
	}, nil
}

// RecordLastUsed stamps the time of the latest successful connect.
func (s *Store) RecordLastUsed(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&database.Connection{}).Where("id = ?", id).
		UpdateColumn("last_connected_at", at)
	if res.Error != nil {
		return fmt.Errorf("record last use: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) load(db *gorm.DB, id string) (*database.Connection, error) {
	var c database.Connection
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load connection: %w", err)
	}
	return &c, nil
}

func (s *Store) setSecret(dst *string, plaintext string) error {
	tok, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	*dst = tok
	return nil
}

func normalize(c *database.Connection) {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.AuthMethod == "" {
		c.AuthMethod = string(sshtransport.AuthPassword)
	}
	if c.Name == "" && c.Host != "" {
		c.Name = c.Username + "@" + c.Host
	}
	if c.AuthMethod == string(sshtransport.AuthPassword) {
		c.PrivateKeyPath = ""
	}
}

func validate(c *database.Connection) error {
	switch {
	case c.Host == "":
		return &ValidationError{Field: "host", Message: "is required"}
	case c.Username == "":
		return &ValidationError{Field: "username", Message: "is required"}
	case c.Port < 1 || c.Port > 65535:
		return &ValidationError{Field: "port", Message: fmt.Sprintf("%d is outside 1-65535", c.Port)}
	case !sshtransport.AuthMethod(c.AuthMethod).Valid():
		return &ValidationError{Field: "auth_method", Message: fmt.Sprintf("%q is not password or privateKey", c.AuthMethod)}
	case c.AuthMethod == string(sshtransport.AuthPrivateKey) && c.PrivateKeyPath == "":
		return &ValidationError{Field: "private_key_path", Message: "is required for privateKey auth"}
	}
	return nil
}

func toRecord(c database.Connection) Record {
	return Record{
		ID:              c.ID,
		Name:            c.Name,
		Host:            c.Host,
		Port:            c.Port,
		Username:        c.Username,
		AuthMethod:      sshtransport.AuthMethod(c.AuthMethod),
		PrivateKeyPath:  c.PrivateKeyPath,
		HasPassword:     c.EncryptedPassword != "",
		HasPassphrase:   c.EncryptedPassphrase != "",
		LastConnectedAt: c.LastConnectedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
