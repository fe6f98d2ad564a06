package mediaservice

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sushihentaime/postboard/internal/common"
)

const (
	// keyPrefix is the folder every uploaded cover image lives under.
	keyPrefix = "blog_images/"

	defaultTimeout = 10 * time.Second
)

// Gateway moves binary assets in and out of the object store. It knows
// nothing about blogs. Delete is idempotent: removing an object that does
// not exist, or a URL the gateway does not own, is not an error.
type Gateway interface {
	Upload(ctx context.Context, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
	Owns(url string) bool
}

// CleanupPublisher hands failed best-effort deletions to the cleanup worker.
type CleanupPublisher struct {
	mb common.MessageProducer
}

// CleanupWorker retries deletions published on the media.cleanup queue.
type CleanupWorker struct {
	mb         common.MessageConsumer
	gw         Gateway
	logger     *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
}

type cleanupRequest struct {
	URL string `json:"url"`
}
