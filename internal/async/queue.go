package async

import (
	"context"
	"time"

	"github.com/logeshOfficial/AIAccountsManager/internal/entity"
)

// Job carries one loaded document to the worker pool.
type Job struct {
	Doc         *entity.RawDocument
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
