package config

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix is prepended to every variable name, e.g. ESSH_LISTEN_ADDR.
const envPrefix = "ESSH"

type Settings struct {
	DataPath     string `envconfig:"DATA_PATH" default:"./data"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:""`
	LogPath      string `envconfig:"LOG_PATH" default:""`
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8022"`

	// SSH transport settings
	ConnectTimeout     time.Duration `envconfig:"CONNECT_TIMEOUT" default:"20s"`
	KeepaliveInterval  time.Duration `envconfig:"KEEPALIVE_INTERVAL" default:"10s"`
	KeepaliveMaxMissed int           `envconfig:"KEEPALIVE_MAX_MISSED" default:"3"`
	TermType           string        `envconfig:"TERM_TYPE" default:"xterm-256color"`
	StrictHostKey      bool          `envconfig:"STRICT_HOST_KEY" default:"false"`
	KnownHostsPath     string        `envconfig:"KNOWN_HOSTS_PATH" default:""`

	// Terminal session settings
	ScrollbackSize int           `envconfig:"SCROLLBACK_SIZE" default:"262144"`
	RecordingDir   string        `envconfig:"RECORDING_DIR" default:""`
	IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" default:"0"`
	ReapSchedule   string        `envconfig:"REAP_SCHEDULE" default:"@every 1m"`

	// Audit trail settings
	AuditRetentionDays int    `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`
	AuditPurgeSchedule string `envconfig:"AUDIT_PURGE_SCHEDULE" default:"@daily"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"localhost:*,127.0.0.1:*"`
}

var Cfg Settings

// Load populates Cfg from the environment and exits on malformed values.
func Load() {
	s, err := Process()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	Cfg = s
}

// Process reads the environment into a fresh Settings value and fills in
// paths derived from DataPath.
func Process() (Settings, error) {
	var s Settings
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return s, err
	}
	if s.DatabasePath == "" {
		s.DatabasePath = filepath.Join(s.DataPath, "electron-ssh.db")
	}
	if s.LogPath == "" {
		s.LogPath = filepath.Join(s.DataPath, "electron-ssh.log")
	}
	if s.StrictHostKey && s.KnownHostsPath == "" {
		return s, fmt.Errorf("%s_KNOWN_HOSTS_PATH is required when %s_STRICT_HOST_KEY is set", envPrefix, envPrefix)
	}
	if s.ConnectTimeout <= 0 {
		return s, fmt.Errorf("%s_CONNECT_TIMEOUT must be positive, got %s", envPrefix, s.ConnectTimeout)
	}
	return s, nil
}
