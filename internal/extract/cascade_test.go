package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

type fakeExtractor struct {
	name   string
	fields entity.ExtractedFields
	err    error
	calls  int
	delay  time.Duration
}

func (f *fakeExtractor) Name() string { return f.name }

func (f *fakeExtractor) Extract(ctx context.Context, _ *entity.RawDocument) (entity.ExtractedFields, []byte, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return entity.ExtractedFields{}, nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.fields, []byte(`{}`), f.err
}

func goodFields() entity.ExtractedFields {
	return entity.ExtractedFields{
		VendorName:  "Acme Corp",
		InvoiceDate: "12-May-2024",
		TotalAmount: "120.00",
		Confidence:  0.95,
	}
}

func testDoc() *entity.RawDocument {
	return &entity.RawDocument{ID: uuid.New(), Pages: []string{"Acme Corp\nTotal: 120.00"}}
}

func TestCascadeFirstTierWinsSkipsRest(t *testing.T) {
	tier1 := &fakeExtractor{name: "openai", fields: goodFields()}
	tier2 := &fakeExtractor{name: "anthropic", fields: goodFields()}
	tier3 := &fakeExtractor{name: "rules", fields: goodFields()}
	c := NewCascade([]Extractor{tier1, tier2, tier3}, nil, CascadeConfig{TierTimeout: time.Second}, nil)

	res, err := c.Run(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, "openai", res.Extractor)
	assert.Equal(t, 1, tier1.calls)
	assert.Zero(t, tier2.calls)
	assert.Zero(t, tier3.calls)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].OK)
}

func TestCascadeTransientFailureFallsThrough(t *testing.T) {
	tier1 := &fakeExtractor{name: "openai", err: fmt.Errorf("%w: 429", common.ErrRateLimited)}
	tier2 := &fakeExtractor{name: "anthropic", fields: goodFields()}
	c := NewCascade([]Extractor{tier1, tier2}, nil, CascadeConfig{TierTimeout: time.Second}, nil)

	res, err := c.Run(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tier)
	assert.Equal(t, "anthropic", res.Extractor)
	require.Len(t, res.Attempts, 2)
	assert.False(t, res.Attempts[0].OK)
	assert.True(t, res.Attempts[1].OK)
}

func TestCascadeTierTimeoutFallsThrough(t *testing.T) {
	slow := &fakeExtractor{name: "openai", fields: goodFields(), delay: time.Second}
	fast := &fakeExtractor{name: "rules", fields: goodFields()}
	c := NewCascade([]Extractor{slow, fast}, nil, CascadeConfig{TierTimeout: 10 * time.Millisecond}, nil)

	res, err := c.Run(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, "rules", res.Extractor)
	assert.Contains(t, res.Attempts[0].Err, common.ErrExtractionTimeout.Error())
}

func TestCascadeAllTiersFailYieldsNoValidExtractor(t *testing.T) {
	tier1 := &fakeExtractor{name: "openai", err: fmt.Errorf("%w: down", common.ErrProviderUnavailable)}
	tier2 := &fakeExtractor{name: "anthropic", err: fmt.Errorf("%w: down", common.ErrProviderUnavailable)}
	tier3 := &fakeExtractor{name: "rules", fields: entity.ExtractedFields{VendorName: "Acme Corp"}}
	c := NewCascade([]Extractor{tier1, tier2, tier3}, nil, CascadeConfig{TierTimeout: time.Second}, nil)

	res, err := c.Run(context.Background(), testDoc())
	require.ErrorIs(t, err, common.ErrNoValidExtractor)
	assert.Len(t, res.Attempts, 3)
	// best partial from the last tier survives for review
	assert.Equal(t, "Acme Corp", res.Fields.VendorName)
}

func TestCascadeRejectsLowConfidence(t *testing.T) {
	low := goodFields()
	low.Confidence = 0.2
	tier1 := &fakeExtractor{name: "openai", fields: low}
	tier2 := &fakeExtractor{name: "rules", fields: goodFields()}
	c := NewCascade([]Extractor{tier1, tier2}, nil, CascadeConfig{TierTimeout: time.Second, MinConfidence: 0.6}, nil)

	res, err := c.Run(context.Background(), testDoc())
	require.NoError(t, err)
	assert.Equal(t, "rules", res.Extractor)
}

func TestCascadeRejectsUnparseableFields(t *testing.T) {
	bad := entity.ExtractedFields{VendorName: "Acme", InvoiceDate: "not a date", TotalAmount: "12.00"}
	tier1 := &fakeExtractor{name: "openai", fields: bad}
	c := NewCascade([]Extractor{tier1}, nil, CascadeConfig{TierTimeout: time.Second}, nil)

	_, err := c.Run(context.Background(), testDoc())
	require.ErrorIs(t, err, common.ErrNoValidExtractor)
}
