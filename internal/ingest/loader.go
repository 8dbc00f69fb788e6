package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
)

// Loader reads invoice files off the local filesystem, dedups them by
// content hash, and hydrates page text for the extraction cascade.
type Loader struct {
	Docs repository.DocumentRepository
	Log  *slog.Logger
}

func NewLoader(docs repository.DocumentRepository, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{Docs: docs, Log: logger}
}

func (l *Loader) LoadPath(ctx context.Context, tenantID, path string) (*entity.RawDocument, Result, error) {
	var out Result

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		return nil, out, fmt.Errorf("unsupported or missing extension %q", ext)
	}
	out.Format = format

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, out, fmt.Errorf("read file: %w", err)
	}

	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])
	now := time.Now().UTC()

	row, dedup, err := l.Docs.UpsertByHash(ctx, tenantID, abs, format, hashHex, now)
	if err != nil {
		return nil, out, err
	}

	out.DocumentID = row.ID.String()
	out.Deduplicated = dedup
	out.HashHex = hashHex
	out.UploadedAt = row.UploadedAt

	if dedup {
		l.Log.Info("ingest.dedup", "path", abs, "doc_id", row.ID, "hash", hashHex[:12])
		return nil, out, nil
	}

	pages, err := extractPages(abs, format, content)
	if err != nil {
		// image-only PDFs and scans still go through; the hosted tiers can
		// work from whatever text survived
		l.Log.Warn("ingest.text_extraction_failed", "path", abs, "error", err)
	}

	doc := &entity.RawDocument{
		ID:         row.ID,
		TenantID:   tenantID,
		SourcePath: abs,
		Format:     format,
		HashHex:    hashHex,
		Pages:      pages,
		Content:    content,
		UploadedAt: row.UploadedAt,
	}
	l.Log.Info("ingest.loaded",
		"path", abs,
		"doc_id", row.ID,
		"format", format,
		"pages", len(pages),
		"bytes", len(content),
	)
	return doc, out, nil
}

func (l *Loader) LoadDirectory(ctx context.Context, tenantID, root string, onDoc func(*entity.RawDocument)) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if IsHidden(path) {
			if d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, r, err := l.LoadPath(ctx, tenantID, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		} else if onDoc != nil {
			onDoc(doc)
		}
		return ctx.Err()
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// extractPages pulls native text where the format carries it. Images have
// none; CSV exports are a single page of raw text.
func extractPages(path, format string, content []byte) ([]string, error) {
	switch format {
	case constants.PDF:
		return pdfPages(path)
	case constants.CSV:
		return []string{string(content)}, nil
	default:
		return nil, nil
	}
}

func pdfPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return pages, fmt.Errorf("page %d text: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return pages, nil
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
