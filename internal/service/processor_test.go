package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
	"github.com/logeshOfficial/AIAccountsManager/internal/resilience"
)

type fakeDocRepo struct {
	mu       sync.Mutex
	statuses map[uuid.UUID][]constants.DocumentStatus
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{statuses: make(map[uuid.UUID][]constants.DocumentStatus)}
}

func (f *fakeDocRepo) UpsertByHash(context.Context, string, string, string, string, time.Time) (*repository.DocumentRow, bool, error) {
	panic("not used")
}

func (f *fakeDocRepo) UpdateStatus(_ context.Context, id uuid.UUID, status constants.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeDocRepo) GetByID(context.Context, uuid.UUID) (*repository.DocumentRow, error) {
	return nil, common.ErrNotFound
}

func (f *fakeDocRepo) history(id uuid.UUID) []constants.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]constants.DocumentStatus(nil), f.statuses[id]...)
}

type fakeInvoiceRepo struct {
	mu      sync.Mutex
	records []*entity.InvoiceRecord
}

func (f *fakeInvoiceRepo) Upsert(_ context.Context, rec *entity.InvoiceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeInvoiceRepo) Search(context.Context, string, repository.InvoiceFilter) ([]entity.InvoiceRecord, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) ListInvalid(context.Context, string) ([]entity.InvoiceRecord, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) last() *entity.InvoiceRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return nil
	}
	return f.records[len(f.records)-1]
}

type scriptedExtractor struct {
	name   string
	fields entity.ExtractedFields
	err    error
}

func (s scriptedExtractor) Name() string { return s.name }

func (s scriptedExtractor) Extract(context.Context, *entity.RawDocument) (entity.ExtractedFields, []byte, error) {
	return s.fields, []byte("{}"), s.err
}

func testDoc() *entity.RawDocument {
	return &entity.RawDocument{
		ID:       uuid.New(),
		TenantID: "tenant-1",
		Format:   constants.PDF,
		Pages:    []string{"Invoice No: AB-100\nTotal: 99.50"},
	}
}

func newProcessor(t *testing.T, tiers ...extract.Extractor) (*Processor, *fakeDocRepo, *fakeInvoiceRepo) {
	t.Helper()
	exec := resilience.NewExecutor(resilience.DefaultConfig(), nil)
	cascade := extract.NewCascade(tiers, exec, extract.CascadeConfig{TierTimeout: time.Second}, nil)
	docs := newFakeDocRepo()
	invoices := &fakeInvoiceRepo{}
	return NewProcessor(cascade, docs, invoices, nil, nil, nil), docs, invoices
}

func TestProcessValidDocument(t *testing.T) {
	p, docs, invoices := newProcessor(t, scriptedExtractor{
		name: "openai",
		fields: entity.ExtractedFields{
			VendorName:  "Acme Stores",
			InvoiceDate: "17/04/2024",
			TotalAmount: "1,156.40",
			Confidence:  0.9,
		},
	})
	doc := testDoc()

	rec, err := p.Process(context.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.Valid)
	assert.Equal(t, "2024-04-17", rec.CanonicalDate())
	assert.Equal(t, "1156.40", rec.CanonicalAmount())
	assert.Equal(t, doc.Text(), rec.RawText)

	stored := invoices.last()
	require.NotNil(t, stored)
	assert.Equal(t, doc.ID, stored.DocumentID)

	assert.Equal(t, []constants.DocumentStatus{constants.DocumentProcessing, constants.DocumentValid}, docs.history(doc.ID))
}

func TestProcessInvalidFieldsStillPersists(t *testing.T) {
	p, docs, invoices := newProcessor(t, scriptedExtractor{
		name: "openai",
		fields: entity.ExtractedFields{
			VendorName:  "Acme Stores",
			InvoiceDate: "someday soon",
			TotalAmount: "1,156.40",
			Confidence:  0.9,
		},
	}, scriptedExtractor{
		name: "anthropic",
		err:  common.ErrProviderUnavailable,
	})
	doc := testDoc()

	rec, err := p.Process(context.Background(), doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoValidExtractor)
	require.NotNil(t, rec)

	assert.False(t, rec.Valid)
	assert.NotNil(t, invoices.last(), "invalid documents must still land in the review set")

	hist := docs.history(doc.ID)
	require.NotEmpty(t, hist)
	assert.Equal(t, constants.DocumentInvalid, hist[len(hist)-1])
}

type failingInvoiceRepo struct {
	fakeInvoiceRepo
	err error
}

func (f *failingInvoiceRepo) Upsert(context.Context, *entity.InvoiceRecord) error {
	return f.err
}

func TestProcessPersistFailureIsWrapped(t *testing.T) {
	exec := resilience.NewExecutor(resilience.DefaultConfig(), nil)
	cascade := extract.NewCascade([]extract.Extractor{scriptedExtractor{
		name: "openai",
		fields: entity.ExtractedFields{
			VendorName:  "Acme Stores",
			InvoiceDate: "17/04/2024",
			TotalAmount: "1,156.40",
			Confidence:  0.9,
		},
	}}, exec, extract.CascadeConfig{TierTimeout: time.Second}, nil)
	repo := &failingInvoiceRepo{err: errors.New("disk full")}
	p := NewProcessor(cascade, newFakeDocRepo(), repo, nil, nil, nil)

	rec, err := p.Process(context.Background(), testDoc())
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, repo.err)
	assert.Contains(t, err.Error(), "persist invoice record")
}

func TestProcessExhaustionKeepsBestPartial(t *testing.T) {
	p, _, invoices := newProcessor(t, scriptedExtractor{
		name: "openai",
		err:  common.ErrProviderUnavailable,
	}, scriptedExtractor{
		name: "anthropic",
		fields: entity.ExtractedFields{
			VendorName: "Acme Stores",
			Confidence: 0.4,
		},
	})
	doc := testDoc()

	rec, err := p.Process(context.Background(), doc)
	assert.ErrorIs(t, err, common.ErrNoValidExtractor)
	require.NotNil(t, rec)

	assert.False(t, rec.Valid)
	assert.Equal(t, "Acme Stores", rec.VendorName)
	assert.Equal(t, doc.Text(), invoices.last().RawText)
}
