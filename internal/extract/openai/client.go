package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract"
)

func (c *Client) Name() string { return "openai" }

// Extract implements extract.Extractor using text-only chat/completions
// with a JSON-object response constraint validated locally against the
// invoice schema.
func (c *Client) Extract(ctx context.Context, doc *entity.RawDocument) (entity.ExtractedFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	text := doc.Text()

	c.log.Info("openai.extract.start",
		"req_id", rid,
		"doc_id", doc.ID,
		"model", c.cfg.Model,
		"text_len", len(text),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return entity.ExtractedFields{}, nil, fmt.Errorf("%w: %v", common.ErrExtractionTimeout, err)
		}
	}

	schema := extract.BuildInvoiceJSONSchema(constants.AsStringSlice())
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(text, doc.SourcePath) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("openai.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractedFields{}, nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return entity.ExtractedFields{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return entity.ExtractedFields{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := extract.StripJSONFence([]byte(cc.Choices[0].Message.Content))

	if err := extract.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.log.Error("openai.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractedFields{}, content, fmt.Errorf("schema validation failed: %w", err)
	}

	var out entity.ExtractedFields
	if err := json.Unmarshal(content, &out); err != nil {
		return entity.ExtractedFields{}, content, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.log.Info("openai.extract.ok",
		"req_id", rid,
		"vendor", out.VendorName,
		"date", out.InvoiceDate,
		"total", out.TotalAmount,
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", common.ErrExtractionTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.log.Warn("openai response body close error", "error", cerr)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: openai status 429: %s", common.ErrRateLimited, buf.String())
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: openai status %d: %s", common.ErrProviderUnavailable, resp.StatusCode, buf.String())
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func buildSystemPrompt() string {
	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the JSON Schema provided.",
		"Extract the vendor name, invoice number, invoice date, total amount, and currency.",
		"For 'total_amount', pick the grand total (all-inclusive), never a subtotal or tax line.",
		"Keep 'invoice_date' exactly as written on the document.",
		"Currency must be a 3-letter ISO 4217 code; omit it if uncertain.",
		"Pick 'category' from the allowed enum when one fits; otherwise omit it and describe the purchase briefly in 'description'.",
		"Set 'confidence' between 0 and 1 for how certain you are overall.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(text, sourcePath string) string {
	var b strings.Builder
	b.WriteString("Source file: ")
	b.WriteString(sourcePath)
	b.WriteString("\n\nDocument text (first ~3k chars):\n")
	if len(text) > 3000 {
		b.WriteString(text[:3000])
	} else {
		b.WriteString(text)
	}
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
