// Package notify announces newly persisted job postings.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-scraper/internal/hash/sha256"
	"github.com/JakeFAU/jobboard-scraper/internal/jobs"
)

// EventCreated is the event name attached to every announcement.
const EventCreated = "job_posting.created"

// Publisher sends one payload and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Message is the JSON body announced for one record.
type Message struct {
	RunID        string   `json:"run_id"`
	ID           int      `json:"id"`
	URL          string   `json:"url"`
	CapturedAt   string   `json:"captured_at"`
	DatePosted   string   `json:"date_posted"`
	Title        string   `json:"title"`
	Organization string   `json:"organization"`
	Location     string   `json:"location"`
	IsRemote     bool     `json:"is_remote"`
	IsFlexible   bool     `json:"is_flexible"`
	IsHybrid     bool     `json:"is_hybrid"`
	TextSHA256   string   `json:"text_sha256"`
	Blobs        []string `json:"blobs"`
}

// NewMessage builds the announcement for rec.
func NewMessage(runID string, rec jobs.Record) Message {
	return Message{
		RunID:        runID,
		ID:           rec.ID,
		URL:          rec.URL,
		CapturedAt:   rec.CapturedAt.Format(jobs.CapturedAtLayout),
		DatePosted:   rec.DatePosted,
		Title:        rec.Title,
		Organization: rec.Organization,
		Location:     rec.Location,
		IsRemote:     rec.IsRemote,
		IsFlexible:   rec.IsFlexible,
		IsHybrid:     rec.IsHybrid,
		TextSHA256:   sha256.Hex(rec.PlainText),
		Blobs: []string{
			rec.BlobName(jobs.BlobKindSourceCode),
			rec.BlobName(jobs.BlobKindText),
		},
	}
}

// Notifier publishes one message per record. Publish failures are logged
// and never returned.
type Notifier struct {
	pub    Publisher
	logger *zap.Logger
}

// New creates a Notifier.
func New(pub Publisher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, logger: logger}
}

// Announce publishes every record and returns how many were accepted.
func (n *Notifier) Announce(ctx context.Context, runID string, records []jobs.Record) int {
	if n == nil || n.pub == nil {
		return 0
	}
	sent := 0
	for _, rec := range records {
		id, err := n.pub.Publish(ctx, EventCreated, NewMessage(runID, rec))
		if err != nil {
			n.logger.Warn("announce failed", zap.Int("id", rec.ID), zap.String("url", rec.URL), zap.Error(err))
			continue
		}
		sent++
		n.logger.Debug("announced", zap.Int("id", rec.ID), zap.String("message_id", id))
	}
	return sent
}
