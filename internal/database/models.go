package database

import "time"

// Connection is a saved remote-login endpoint. Secret fields hold
// fernet tokens, never plaintext.
type Connection struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id"`
	Name                string     `gorm:"not null" json:"name"`
	Host                string     `gorm:"not null" json:"host"`
	Port                int        `gorm:"not null;default:22" json:"port"`
	Username            string     `gorm:"not null" json:"username"`
	AuthMethod          string     `gorm:"not null;default:password" json:"auth_method"`
	PrivateKeyPath      string     `json:"private_key_path"`
	EncryptedPassword   string     `json:"-"`
	EncryptedPassphrase string     `json:"-"`
	LastConnectedAt     *time.Time `json:"last_connected_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AuditLog is a persisted session lifecycle event.
type AuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ConnectionID string    `gorm:"index;size:36" json:"connection_id"`
	SessionID    string    `gorm:"size:36" json:"session_id,omitempty"`
	EventType    string    `gorm:"index;not null" json:"event_type"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
