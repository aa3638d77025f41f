package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Action names a manual billing action.
type Action string

const (
	ActionAccrualRun    Action = "accrual.run"
	ActionAccrualRunAll Action = "accrual.run_all"
	ActionReportExport  Action = "report.export"
	// ActionScopeDenied records a request for a station outside the caller's scope.
	ActionScopeDenied Action = "auth.scope_denied"
)

// Entry represents an audit log entry for a manual billing action.
// Period is the billing month (YYYY-MM) for report actions; Outcome is the
// accrual outcome or export format result; Scope is the caller's station scope.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Scope         string
	Action        Action
	ResourceType  string
	ResourceID    string
	StationCode   string
	Period        string
	Outcome       string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "audit-" + hex.EncodeToString(buf)
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WithMetadata marshals meta into the entry. Unmarshalable values leave Metadata empty.
func (e Entry) WithMetadata(meta map[string]any) Entry {
	if len(meta) == 0 {
		return e
	}
	if payload, err := json.Marshal(meta); err == nil {
		e.Metadata = payload
	}
	return e
}
