package ingest

import (
	"context"
	"time"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// Result is the per-file ingest outcome.
type Result struct {
	SourcePath   string
	DocumentID   string
	Deduplicated bool
	HashHex      string
	Format       string
	UploadedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the processing pipeline depends on.
type Ingestor interface {
	// LoadPath ingests a single file and returns the hydrated document.
	// A nil document with a populated Result means the file was a duplicate.
	LoadPath(ctx context.Context, tenantID, path string) (*entity.RawDocument, Result, error)
	// LoadDirectory ingests all matching files under root.
	LoadDirectory(ctx context.Context, tenantID, root string, onDoc func(*entity.RawDocument)) ([]Result, DirStats, error)
}
