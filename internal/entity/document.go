package entity

import (
	"time"

	"github.com/google/uuid"
)

// RawDocument is one ingested file, normalized to page-level text where the
// format allows it. Immutable; archived after the extraction attempt.
type RawDocument struct {
	ID         uuid.UUID
	TenantID   string
	SourcePath string
	Format     string // constants.PDF | constants.IMAGE | constants.CSV
	HashHex    string
	Pages      []string // native text per page, empty for image-only files
	Content    []byte
	UploadedAt time.Time
}

// Text joins the page texts into one block for the extractors.
func (d *RawDocument) Text() string {
	switch len(d.Pages) {
	case 0:
		return ""
	case 1:
		return d.Pages[0]
	}
	out := d.Pages[0]
	for _, p := range d.Pages[1:] {
		out += "\n" + p
	}
	return out
}

// ExtractionAttempt records one tier's attempt at a document. Ephemeral:
// logged, and attached to the failure when every tier is exhausted.
type ExtractionAttempt struct {
	Tier      int
	Extractor string
	RawOutput string
	OK        bool
	Err       string
	Latency   time.Duration
}
