package jobs

import (
	"fmt"
	"time"
)

// CapturedAtLayout is the timestamp format written to the tabular store.
const CapturedAtLayout = "2006-01-02 15:04:05"

// Blob kinds written per record.
const (
	BlobKindSourceCode = "source_code"
	BlobKindText       = "text"
)

// RawListing is one posting's markup fragment as it appears inside a listing group.
type RawListing struct {
	Group int
	Index int
	HTML  string
}

// Fields holds the values a FieldExtractor derives from a RawListing.
type Fields struct {
	URL          string
	DatePosted   string
	Title        string
	Organization string
	Location     string
	IsRemote     bool
	IsFlexible   bool
	IsHybrid     bool
}

// Enrichment is the content fetched for a listing's own page.
type Enrichment struct {
	RawMarkup string
	PlainText string
}

// Record is the unit of work and persistence for one new posting.
type Record struct {
	ID         int
	CapturedAt time.Time
	Fields
	Enrichment
}

// Row returns the tabular representation of the record. Enrichment payloads are
// never part of the row.
func (r Record) Row() []any {
	return []any{
		r.ID,
		r.URL,
		r.CapturedAt.Format(CapturedAtLayout),
		r.DatePosted,
		r.Title,
		r.Organization,
		r.Location,
		r.IsRemote,
		r.IsFlexible,
		r.IsHybrid,
	}
}

// BlobName returns the blob file name for the given payload kind.
func (r Record) BlobName(kind string) string {
	return BlobName(r.ID, kind)
}

// BlobName formats the blob file name for a record id and payload kind.
func BlobName(id int, kind string) string {
	return fmt.Sprintf("%d_%s.txt", id, kind)
}

// RunStats counts what happened to the listings of one run.
type RunStats struct {
	Seen      int
	Existing  int
	Duplicate int
	Dropped   int
	New       int
	Persisted int
}
