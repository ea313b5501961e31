// Package audit keeps a persistent trail of session lifecycle events
// (connects, failures, disconnects) in the database, with retention.
package audit

import (
	"fmt"
	"log"
	"time"

	"github.com/sbjang123456/electron-ssh/internal/database"
	"github.com/sbjang123456/electron-ssh/internal/logutil"
	"github.com/sbjang123456/electron-ssh/internal/sshsession"
	"gorm.io/gorm"
)

// DefaultRetentionDays is the default number of days to keep audit logs.
const DefaultRetentionDays = 90

type Auditor struct {
	db            *gorm.DB
	retentionDays int
	nowFn         func() time.Time
}

// NewAuditor writes to db. retentionDays <= 0 selects DefaultRetentionDays.
func NewAuditor(db *gorm.DB, retentionDays int) *Auditor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Auditor{db: db, retentionDays: retentionDays, nowFn: time.Now}
}

// Record persists ev. Its signature matches sshsession.EventListener so it
// can be passed to Manager.OnEvent.
func (a *Auditor) Record(ev sshsession.LifecycleEvent) {
	entry := database.AuditLog{
		ConnectionID: ev.ConnectionID,
		SessionID:    ev.SessionID,
		EventType:    string(ev.Type),
		Details:      ev.Details,
		CreatedAt:    ev.Timestamp,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.nowFn()
	}
	if err := a.db.Create(&entry).Error; err != nil {
		log.Printf("[audit] failed to write %s for connection %s: %v",
			ev.Type, logutil.SanitizeForLog(ev.ConnectionID), err)
	}
}

// QueryOptions filters audit entries. Zero values match everything.
type QueryOptions struct {
	ConnectionID string
	EventType    string
	Since        *time.Time
	Until        *time.Time
	Limit        int
	Offset       int
}

type QueryResult struct {
	Entries []database.AuditLog `json:"entries"`
	Total   int64               `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// Query returns matching entries newest first. Limit defaults to 50 and is
// capped at 1000.
func (a *Auditor) Query(opts QueryOptions) (*QueryResult, error) {
	tx := a.db.Model(&database.AuditLog{})

	if opts.ConnectionID != "" {
		tx = tx.Where("connection_id = ?", opts.ConnectionID)
	}
	if opts.EventType != "" {
		tx = tx.Where("event_type = ?", opts.EventType)
	}
	if opts.Since != nil {
		tx = tx.Where("created_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		tx = tx.Where("created_at <= ?", *opts.Until)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var entries []database.AuditLog
	if err := tx.Order("created_at DESC, id DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	return &QueryResult{
		Entries: entries,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}, nil
}

// PurgeOlderThan deletes entries older than days, or than the configured
// retention when days <= 0, and returns how many were removed.
func (a *Auditor) PurgeOlderThan(days int) (int64, error) {
	if days <= 0 {
		days = a.retentionDays
	}
	cutoff := a.nowFn().AddDate(0, 0, -days)
	result := a.db.Where("created_at < ?", cutoff).Delete(&database.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge audit logs: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("[audit] purged %d entries older than %d days", result.RowsAffected, days)
	}
	return result.RowsAffected, nil
}

func (a *Auditor) RetentionDays() int {
	return a.retentionDays
}

// SetNowFunc replaces the clock.
func (a *Auditor) SetNowFunc(fn func() time.Time) {
	a.nowFn = fn
}
