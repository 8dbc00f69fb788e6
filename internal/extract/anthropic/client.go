package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/logeshOfficial/AIAccountsManager/constants"
	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/extract"
)

// Config for the Anthropic fallback tier.
type Config struct {
	APIKey    string
	Model     string // e.g. "claude-haiku-4-5"
	MaxTokens int64
}

// Client implements extract.Extractor over the official SDK. It is the
// second tier: invoked only when the primary provider fails or times out.
type Client struct {
	cfg    Config
	client sdk.Client
	log    *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		client: sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		log:    logger,
	}
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Extract(ctx context.Context, doc *entity.RawDocument) (entity.ExtractedFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	text := doc.Text()

	c.log.Info("anthropic.extract.start",
		"req_id", rid,
		"doc_id", doc.ID,
		"model", c.cfg.Model,
		"text_len", len(text),
	)

	schema := extract.BuildInvoiceJSONSchema(constants.AsStringSlice())
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		System: []sdk.TextBlockParam{
			{Text: buildSystemPrompt(schema)},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildUserPrompt(text, doc.SourcePath))),
		},
	})
	if err != nil {
		mapped := mapSDKError(err)
		c.log.Error("anthropic.extract.api_error",
			"req_id", rid, "error", mapped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractedFields{}, nil, mapped
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	raw := extract.StripJSONFence([]byte(content.String()))

	if err := extract.ValidateJSONAgainstSchema(schema, raw); err != nil {
		c.log.Error("anthropic.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractedFields{}, raw, fmt.Errorf("schema validation failed: %w", err)
	}

	var out entity.ExtractedFields
	if err := json.Unmarshal(raw, &out); err != nil {
		return entity.ExtractedFields{}, raw, fmt.Errorf("unmarshal fields: %w", err)
	}

	c.log.Info("anthropic.extract.ok",
		"req_id", rid,
		"vendor", out.VendorName,
		"date", out.InvoiceDate,
		"total", out.TotalAmount,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, raw, nil
}

func mapSDKError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrExtractionTimeout, err)
	}
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: anthropic status 429", common.ErrRateLimited)
		case apierr.StatusCode >= 500:
			return fmt.Errorf("%w: anthropic status %d", common.ErrProviderUnavailable, apierr.StatusCode)
		}
		return fmt.Errorf("anthropic: create message: %w", err)
	}
	// transport-level failure, DNS, connection refused
	return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
}

func buildSystemPrompt(schema map[string]any) string {
	b, _ := json.MarshalIndent(schema, "", "  ")
	parts := []string{
		"You are an invoice parser. Return ONLY a JSON object matching this JSON Schema, with no prose around it.",
		"For 'total_amount', pick the grand total (all-inclusive), never a subtotal or tax line.",
		"Keep 'invoice_date' exactly as written on the document.",
		"Never output null. If a field is not present, omit it.",
		"JSON Schema:\n" + string(b),
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
