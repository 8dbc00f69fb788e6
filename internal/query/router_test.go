package query

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logeshOfficial/AIAccountsManager/internal/common"
	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
	"github.com/logeshOfficial/AIAccountsManager/internal/report"
	"github.com/logeshOfficial/AIAccountsManager/internal/repository"
)

type stubParser struct {
	intent QueryIntent
	err    error
}

func (s *stubParser) Parse(context.Context, string) (QueryIntent, error) {
	return s.intent, s.err
}

// fakeInvoiceRepo applies InvoiceFilter semantics in memory.
type fakeInvoiceRepo struct {
	records []entity.InvoiceRecord
}

func (f *fakeInvoiceRepo) Upsert(context.Context, *entity.InvoiceRecord) error { return nil }

func (f *fakeInvoiceRepo) ListInvalid(context.Context, string) ([]entity.InvoiceRecord, error) {
	return nil, nil
}

func (f *fakeInvoiceRepo) Search(_ context.Context, tenantID string, filter repository.InvoiceFilter) ([]entity.InvoiceRecord, error) {
	var out []entity.InvoiceRecord
	for _, rec := range f.records {
		if rec.TenantID != tenantID {
			continue
		}
		if filter.OnlyValid && !rec.Valid {
			continue
		}
		if filter.Vendor != "" && !strings.Contains(strings.ToLower(rec.VendorName), strings.ToLower(filter.Vendor)) {
			continue
		}
		if filter.Category != "" && rec.Category != filter.Category {
			continue
		}
		if filter.Year > 0 && rec.TxDate.Year() != filter.Year {
			continue
		}
		if filter.Month > 0 && rec.TxDate.Month() != filter.Month {
			continue
		}
		if filter.Keyword != "" {
			kw := strings.ToLower(filter.Keyword)
			hay := strings.ToLower(rec.VendorName + " " + rec.Category + " " + rec.InvoiceNumber + " " + rec.RawText)
			if !strings.Contains(hay, kw) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func fixtureRecord(vendor, category, date, amount string) entity.InvoiceRecord {
	dt, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return entity.InvoiceRecord{
		ID:           uuid.New(),
		TenantID:     "tenant-1",
		VendorName:   vendor,
		TxDate:       dt,
		Amount:       decimal.RequireFromString(amount),
		CurrencyCode: "USD",
		Category:     category,
		Valid:        true,
	}
}

func groceriesFixture() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{records: []entity.InvoiceRecord{
		fixtureRecord("Fresh Mart", "Groceries", "2023-02-03", "150.00"),
		fixtureRecord("Daily Bazaar", "Groceries", "2023-02-14", "200.10"),
		fixtureRecord("Fresh Mart", "Groceries", "2023-02-27", "102.20"),
		fixtureRecord("Cloud Host", "Software", "2023-02-10", "39.00"),
		fixtureRecord("Fresh Mart", "Groceries", "2023-06-01", "80.00"),
	}}
}

func TestRouteGroceriesFebruaryTotal(t *testing.T) {
	parser := &stubParser{intent: QueryIntent{Category: "Groceries", Year: 2023, Month: time.February}}
	r := NewRouter(parser, groceriesFixture(), nil)

	ans, err := r.Route(context.Background(), "tenant-1", "Show total spent on Groceries in Feb 2023")
	require.NoError(t, err)

	assert.Len(t, ans.Records, 3)
	assert.Equal(t, "452.30", ans.Total.StringFixed(2))
	assert.Equal(t, report.GroupByDate, ans.Spec.GroupBy)
	assert.Contains(t, ans.Text, "452.30")
}

func TestRouteSuperlativeGroupsByVendorDescending(t *testing.T) {
	repo := &fakeInvoiceRepo{records: []entity.InvoiceRecord{
		fixtureRecord("Small Shop", "Other", "2024-01-05", "10.00"),
		fixtureRecord("Big Corp", "Other", "2024-02-05", "500.00"),
		fixtureRecord("Mid Inc", "Other", "2024-03-05", "200.00"),
	}}
	parser := &stubParser{intent: QueryIntent{Year: 2024}}
	r := NewRouter(parser, repo, nil)

	ans, err := r.Route(context.Background(), "tenant-1", "Which vendor did I spend the most with in 2024?")
	require.NoError(t, err)

	// "most" overrides the year's month grouping
	assert.Equal(t, report.GroupByVendor, ans.Spec.GroupBy)
	rep := report.Assemble(ans.Records, ans.Spec)
	require.NotEmpty(t, rep.Groups)
	assert.Equal(t, "Big Corp", rep.Groups[0].Key)
	assert.Contains(t, ans.Text, "Big Corp")
}

func TestRouteYearScopedGroupsByMonth(t *testing.T) {
	parser := &stubParser{intent: QueryIntent{Year: 2023}}
	r := NewRouter(parser, groceriesFixture(), nil)

	ans, err := r.Route(context.Background(), "tenant-1", "Summarize my 2023 spending")
	require.NoError(t, err)
	assert.Equal(t, report.GroupByMonth, ans.Spec.GroupBy)
	assert.Len(t, ans.Records, 5)
}

func TestRouteParseFailureFallsBackToKeywordSearch(t *testing.T) {
	parser := &stubParser{err: fmt.Errorf("%w: no choices", common.ErrQueryParseFailure)}
	r := NewRouter(parser, groceriesFixture(), nil)

	ans, err := r.Route(context.Background(), "tenant-1", "Fresh Mart")
	require.NoError(t, err)
	assert.True(t, ans.KeywordFallback)
	assert.Len(t, ans.Records, 3)
	assert.Contains(t, ans.Text, "keyword")
}

func TestRouteBareMonthUsesMostRecentlyReferencedYear(t *testing.T) {
	repo := groceriesFixture()
	r := NewRouter(&stubParser{intent: QueryIntent{Year: 2023}}, repo, nil)

	_, err := r.Route(context.Background(), "tenant-1", "Spending in 2023")
	require.NoError(t, err)

	r.Parser = &stubParser{intent: QueryIntent{Category: "Groceries", Month: time.February}}
	ans, err := r.Route(context.Background(), "tenant-1", "And just for February?")
	require.NoError(t, err)

	assert.Equal(t, 2023, ans.Intent.Year)
	assert.Equal(t, "452.30", ans.Total.StringFixed(2))
}

func TestRouteModalityKeywords(t *testing.T) {
	r := NewRouter(&stubParser{intent: QueryIntent{Year: 2023}}, groceriesFixture(), nil)

	ans, err := r.Route(context.Background(), "tenant-1", "Email me an excel report for 2023")
	require.NoError(t, err)
	assert.True(t, ans.Intent.WantReport)
	assert.False(t, ans.Intent.WantChart)

	ans, err = r.Route(context.Background(), "tenant-1", "Show a pie chart for 2023")
	require.NoError(t, err)
	assert.True(t, ans.Intent.WantChart)
}

func TestRouteNoMatches(t *testing.T) {
	r := NewRouter(&stubParser{intent: QueryIntent{Vendor: "Nonexistent"}}, groceriesFixture(), nil)

	ans, err := r.Route(context.Background(), "tenant-1", "Anything from Nonexistent Vendor?")
	require.NoError(t, err)
	assert.Empty(t, ans.Records)
	assert.Contains(t, ans.Text, "couldn't find")
}
