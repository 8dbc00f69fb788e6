package extract

import (
	"context"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// Extractor is one tier of the extraction cascade. Extract returns the
// parsed fields plus the provider's raw output for audit; errors wrapping
// the transient sentinels fall through to the next tier.
type Extractor interface {
	// Name identifies the extractor in logs and attempt records.
	Name() string
	// Extract pulls invoice fields out of the document text.
	Extract(ctx context.Context, doc *entity.RawDocument) (entity.ExtractedFields, []byte, error)
}
