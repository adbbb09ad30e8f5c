package data

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type auditOp struct {
	desc  string
	apply func(db *gorm.DB) error
}

// AuditWriter records session events in the background so callers never
// wait on the database. Events are dropped with a warning if the queue fills.
type AuditWriter struct {
	db     *gorm.DB
	logger *logrus.Logger
	ops    chan auditOp
}

func NewAuditWriter(db *gorm.DB, logger *logrus.Logger, queueSize int) *AuditWriter {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &AuditWriter{db: db, logger: logger, ops: make(chan auditOp, queueSize)}
}

// Run writes queued events until ctx is cancelled, then writes whatever is
// still queued and returns.
func (w *AuditWriter) Run(ctx context.Context) error {
	for {
		select {
		case op := <-w.ops:
			w.apply(op)
		case <-ctx.Done():
			for {
				select {
				case op := <-w.ops:
					w.apply(op)
				default:
					return nil
				}
			}
		}
	}
}

func (w *AuditWriter) apply(op auditOp) {
	if err := op.apply(w.db); err != nil {
		w.logger.Errorf("error recording %s: %v", op.desc, err)
	}
}

func (w *AuditWriter) enqueue(op auditOp) {
	select {
	case w.ops <- op:
	default:
		w.logger.Warnf("audit queue full, dropping %s", op.desc)
	}
}

func (w *AuditWriter) LoginAccepted(sessionID, username, addr string, peer uint8, at time.Time) {
	w.enqueue(auditOp{
		desc: "accepted login for " + username,
		apply: func(db *gorm.DB) error {
			return CreateSessionRecord(db, &SessionRecord{
				SessionID:   sessionID,
				Username:    username,
				Address:     addr,
				PeerID:      peer,
				Outcome:     OutcomeAccepted,
				ConnectedAt: at,
			})
		},
	})
}

func (w *AuditWriter) LoginRejected(sessionID, username, addr, reason string, at time.Time) {
	w.enqueue(auditOp{
		desc: "rejected login for " + username,
		apply: func(db *gorm.DB) error {
			return CreateSessionRecord(db, &SessionRecord{
				SessionID:   sessionID,
				Username:    username,
				Address:     addr,
				Outcome:     OutcomeRejected,
				Reason:      reason,
				ConnectedAt: at,
			})
		},
	})
}

func (w *AuditWriter) Activated(sessionID string, at time.Time) {
	w.enqueue(auditOp{
		desc:  "activation of session " + sessionID,
		apply: func(db *gorm.DB) error { return MarkSessionActivated(db, sessionID, at) },
	})
}

func (w *AuditWriter) Disconnected(sessionID string, at time.Time) {
	w.enqueue(auditOp{
		desc:  "disconnect of session " + sessionID,
		apply: func(db *gorm.DB) error { return MarkSessionDisconnected(db, sessionID, at) },
	})
}
