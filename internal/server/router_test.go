package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/async"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/ingest"
	"github.com/logeshOfficial/AIAccountsManager/internal/query"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
	"github.com/logeshOfficial/AIAccountsManager/internal/service"
)

type fakeLoader struct {
	doc *entity.RawDocument
}

func (f *fakeLoader) LoadPath(_ context.Context, tenantID, path string) (*entity.RawDocument, ingest.Result, error) {
	res := ingest.Result{SourcePath: path, Format: constants.PDF, Deduplicated: f.doc == nil}
	if f.doc != nil {
		f.doc.TenantID = tenantID
		res.DocumentID = f.doc.ID.String()
	}
	return f.doc, res, nil
}

func (f *fakeLoader) LoadDirectory(_ context.Context, tenantID, _ string, onDoc func(*entity.RawDocument)) ([]ingest.Result, ingest.DirStats, error) {
	if f.doc != nil {
		f.doc.TenantID = tenantID
		onDoc(f.doc)
	}
	return []ingest.Result{{Format: constants.PDF}}, ingest.DirStats{Scanned: 1, Matched: 1, Succeeded: 1}, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (f *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Shutdown(context.Context) {}

func (f *fakeQueue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

type cannedParser struct {
	intent query.QueryIntent
}

func (c cannedParser) Parse(context.Context, string) (query.QueryIntent, error) {
	return c.intent, nil
}

type cannedInvoices struct {
	records []entity.InvoiceRecord
	invalid []entity.InvoiceRecord
}

func (c *cannedInvoices) Upsert(context.Context, *entity.InvoiceRecord) error { return nil }

func (c *cannedInvoices) Search(context.Context, string, repository.InvoiceFilter) ([]entity.InvoiceRecord, error) {
	return c.records, nil
}

func (c *cannedInvoices) ListInvalid(context.Context, string) ([]entity.InvoiceRecord, error) {
	return c.invalid, nil
}

func sampleRecords() []entity.InvoiceRecord {
	return []entity.InvoiceRecord{
		{
			ID:           uuid.New(),
			TenantID:     "tenant-1",
			VendorName:   "Fresh Mart",
			TxDate:       time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC),
			Amount:       decimal.RequireFromString("150.00"),
			CurrencyCode: "USD",
			Category:     string(constants.Groceries),
			Valid:        true,
		},
		{
			ID:           uuid.New(),
			TenantID:     "tenant-1",
			VendorName:   "Fresh Mart",
			TxDate:       time.Date(2023, 2, 12, 0, 0, 0, 0, time.UTC),
			Amount:       decimal.RequireFromString("302.30"),
			CurrencyCode: "USD",
			Category:     string(constants.Groceries),
			Valid:        true,
		},
	}
}

func newTestRouter(t *testing.T, loader *fakeLoader, queue *fakeQueue, intent query.QueryIntent, invoices *cannedInvoices) *Router {
	t.Helper()
	qr := query.NewRouter(cannedParser{intent: intent}, invoices, nil)
	assistant := service.NewAssistant(qr, nil, nil, nil)
	return NewRouter(loader, queue, assistant, invoices, nil, nil)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rt := newTestRouter(t, &fakeLoader{}, &fakeQueue{}, query.QueryIntent{}, &cannedInvoices{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestIngestPathEnqueuesDocument(t *testing.T) {
	queue := &fakeQueue{}
	loader := &fakeLoader{doc: &entity.RawDocument{ID: uuid.New(), Pages: []string{"Total: 10.00"}}}
	rt := newTestRouter(t, loader, queue, query.QueryIntent{}, &cannedInvoices{})

	rr := postJSON(t, rt.Handler(), "/v1/ingest", ingestRequest{TenantID: "tenant-1", Path: "/inbox/a.pdf"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, queue.count())
}

func TestIngestDeduplicatedSkipsQueue(t *testing.T) {
	queue := &fakeQueue{}
	rt := newTestRouter(t, &fakeLoader{doc: nil}, queue, query.QueryIntent{}, &cannedInvoices{})

	rr := postJSON(t, rt.Handler(), "/v1/ingest", ingestRequest{TenantID: "tenant-1", Path: "/inbox/a.pdf"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Zero(t, queue.count())

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Deduplicated)
}

func TestIngestRequiresTenant(t *testing.T) {
	rt := newTestRouter(t, &fakeLoader{}, &fakeQueue{}, query.QueryIntent{}, &cannedInvoices{})
	rr := postJSON(t, rt.Handler(), "/v1/ingest", ingestRequest{Path: "/inbox/a.pdf"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQueryReturnsAnswer(t *testing.T) {
	invoices := &cannedInvoices{records: sampleRecords()}
	intent := query.QueryIntent{Category: string(constants.Groceries), Year: 2023, Month: time.February}
	rt := newTestRouter(t, &fakeLoader{}, &fakeQueue{}, intent, invoices)

	rr := postJSON(t, rt.Handler(), "/v1/query", queryRequest{TenantID: "tenant-1", Query: "grocery spend in feb 2023"})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "452.30", resp.Total)
	assert.Equal(t, 2, resp.Records)
	assert.NotEmpty(t, resp.Text)
	assert.False(t, resp.KeywordFallback)
	assert.NotEmpty(t, resp.Groups)
}

func TestReportDownloadStreamsWorkbook(t *testing.T) {
	invoices := &cannedInvoices{records: sampleRecords()}
	intent := query.QueryIntent{Category: string(constants.Groceries), Year: 2023, Month: time.February}
	rt := newTestRouter(t, &fakeLoader{}, &fakeQueue{}, intent, invoices)

	rr := postJSON(t, rt.Handler(), "/v1/report", queryRequest{TenantID: "tenant-1", Query: "grocery report feb 2023"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, rr.Body.Bytes())
}

func TestListInvalidRecords(t *testing.T) {
	invalid := []entity.InvoiceRecord{{ID: uuid.New(), TenantID: "tenant-1", Valid: false}}
	rt := newTestRouter(t, &fakeLoader{}, &fakeQueue{}, query.QueryIntent{}, &cannedInvoices{invalid: invalid})

	req := httptest.NewRequest(http.MethodGet, "/v1/invalid?tenant_id=tenant-1", nil)
	rr := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestStatusForMapsSentinels(t *testing.T) {
	cases := map[error]int{
		common.ErrNotFound:        http.StatusNotFound,
		common.ErrInvalidInput:    http.StatusBadRequest,
		common.ErrDeliveryFailure: http.StatusBadGateway,
		common.WrapError(common.ErrInternal, "build workbook"): http.StatusInternalServerError,
		errors.New("unclassified"):                             http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), "error %v", err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rt := newTestRouter(t, &fakeLoader{}, &fakeQueue{}, query.QueryIntent{}, &cannedInvoices{})
	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	rr := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
