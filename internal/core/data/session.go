package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Outcomes of a login attempt.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// SessionRecord is the audit trail of one login attempt and, if it was
// accepted, the session that followed.
type SessionRecord struct {
	ID             uint64 `gorm:"primaryKey"`
	SessionID      string `gorm:"uniqueIndex; not null"`
	Username       string `gorm:"index"`
	Address        string
	PeerID         uint8
	Outcome        string `gorm:"not null"`
	Reason         string
	ConnectedAt    time.Time
	ActivatedAt    *time.Time
	DisconnectedAt *time.Time
}

// CreateSessionRecord persists a new SessionRecord.
func CreateSessionRecord(db *gorm.DB, record *SessionRecord) error {
	return db.Create(record).Error
}

// FindSessionRecord returns the record with the given session id, or nil if
// there is none.
func FindSessionRecord(db *gorm.DB, sessionID string) (*SessionRecord, error) {
	var record SessionRecord
	err := db.Where("session_id = ?", sessionID).First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

// FindSessionsByUsername returns every attempt made under username, oldest first.
func FindSessionsByUsername(db *gorm.DB, username string) ([]SessionRecord, error) {
	var records []SessionRecord
	err := db.Where("username = ?", username).Order("connected_at, id").Find(&records).Error
	return records, err
}

func MarkSessionActivated(db *gorm.DB, sessionID string, at time.Time) error {
	return db.Model(&SessionRecord{}).Where("session_id = ?", sessionID).Update("activated_at", at).Error
}

func MarkSessionDisconnected(db *gorm.DB, sessionID string, at time.Time) error {
	return db.Model(&SessionRecord{}).Where("session_id = ?", sessionID).Update("disconnected_at", at).Error
}
