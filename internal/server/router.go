package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logeshOfficial/AIAccountsManager/internal/async"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/ingest"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
	"github.com/logeshOfficial/AIAccountsManager/internal/service"
)

// Router exposes the assistant over JSON HTTP. Ingestion is
// asynchronous: documents are loaded, persisted as PENDING, and handed
// to the worker queue; extraction happens off the request path.
type Router struct {
	Loader    ingest.Ingestor
	Queue     async.Queue
	Assistant *service.Assistant
	Invoices  repository.InvoiceRepository
	Registry  *prometheus.Registry
	Log       *slog.Logger
}

func NewRouter(
	loader ingest.Ingestor,
	queue async.Queue,
	assistant *service.Assistant,
	invoices repository.InvoiceRepository,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		Loader:    loader,
		Queue:     queue,
		Assistant: assistant,
		Invoices:  invoices,
		Registry:  registry,
		Log:       logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ingest", rt.ingestDocuments)
	mux.HandleFunc("/v1/query", rt.answerQuery)
	mux.HandleFunc("/v1/report", rt.downloadReport)
	mux.HandleFunc("/v1/invalid", rt.listInvalid)
	if rt.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}))
	}
	return rt.logging(mux)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	TenantID string `json:"tenant_id"`
	Path     string `json:"path"`
	Dir      string `json:"dir"`
}

type ingestResponse struct {
	Results []ingest.Result `json:"results"`
	Stats   ingest.DirStats `json:"stats"`
}

func (rt *Router) ingestDocuments(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	ctx := common.WithTenantID(r.Context(), req.TenantID)
	traceID := common.RequestIDFromContext(ctx)
	switch {
	case req.Path != "":
		doc, res, err := rt.Loader.LoadPath(ctx, req.TenantID, req.Path)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if doc != nil {
			_ = rt.Queue.Enqueue(ctx, async.Job{Doc: doc, TraceID: traceID})
		}
		writeJSON(w, http.StatusAccepted, ingestResponse{Results: []ingest.Result{res}})
	case req.Dir != "":
		results, stats, err := rt.Loader.LoadDirectory(ctx, req.TenantID, req.Dir, func(doc *entity.RawDocument) {
			_ = rt.Queue.Enqueue(ctx, async.Job{Doc: doc, TraceID: traceID})
		})
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, ingestResponse{Results: results, Stats: stats})
	default:
		writeError(w, http.StatusBadRequest, "path or dir is required")
	}
}

type queryRequest struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query"`
}

type queryResponse struct {
	Text            string     `json:"text"`
	Total           string     `json:"total"`
	Records         int        `json:"record_count"`
	KeywordFallback bool       `json:"keyword_fallback"`
	Chart           any        `json:"chart,omitempty"`
	EmailedTo       string     `json:"emailed_to,omitempty"`
	ReportAvailable bool       `json:"report_available"`
	Groups          []groupDTO `json:"groups"`
}

type groupDTO struct {
	Key     string `json:"key"`
	Total   string `json:"total"`
	Records int    `json:"record_count"`
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TenantID == "" || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "tenant_id and query are required")
		return
	}

	res, err := rt.Assistant.Ask(common.WithTenantID(r.Context(), req.TenantID), req.TenantID, req.Query)
	if err != nil && !errors.Is(err, common.ErrDeliveryFailure) {
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := queryResponse{
		Text:            res.Answer.Text,
		Total:           res.Answer.Total.StringFixed(2),
		Records:         len(res.Answer.Records),
		KeywordFallback: res.Answer.KeywordFallback,
		EmailedTo:       res.EmailedTo,
		ReportAvailable: len(res.Workbook) > 0,
	}
	if res.ChartSpec != nil {
		resp.Chart = res.ChartSpec
	}
	for _, g := range res.Report.Groups {
		resp.Groups = append(resp.Groups, groupDTO{Key: g.Key, Total: g.Total.StringFixed(2), Records: len(g.Records)})
	}
	if err != nil {
		// answered but the email leg failed; surface both
		resp.Text += " (Report email could not be delivered.)"
		rt.Log.Warn("query.email_leg_failed", "tenant", req.TenantID, "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// downloadReport answers the same question as /v1/query but streams the
// spreadsheet instead of JSON.
func (rt *Router) downloadReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TenantID == "" || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "tenant_id and query are required")
		return
	}

	res, err := rt.Assistant.AskForWorkbook(common.WithTenantID(r.Context(), req.TenantID), req.TenantID, req.Query)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Workbook)
}

func (rt *Router) listInvalid(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	recs, err := rt.Invoices.ListInvalid(r.Context(), tenantID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrDeliveryFailure):
		return http.StatusBadGateway
	case errors.Is(err, common.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (rt *Router) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		r = r.WithContext(common.WithRequestID(r.Context(), requestID))
		next.ServeHTTP(w, r)
		rt.Log.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}
