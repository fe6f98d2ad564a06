package mediaservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sushihentaime/postboard/internal/common"
)

// MemoryGateway keeps uploaded objects in process memory. It is used when no
// bucket is configured and in tests.
type MemoryGateway struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryGateway(baseURL string) *MemoryGateway {
	return &MemoryGateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

func (g *MemoryGateway) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("%w: upload: %w", common.ErrStorageUnavailable, err)
	}

	if err := ctx.Err(); err != nil {
		return "", classify(ctx, "upload", err)
	}

	url := g.baseURL + "/" + newObjectKey(contentType)

	g.mu.Lock()
	g.objects[url] = buf.Bytes()
	g.mu.Unlock()

	return url, nil
}

func (g *MemoryGateway) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return classify(ctx, "delete", err)
	}

	g.mu.Lock()
	delete(g.objects, url)
	g.mu.Unlock()

	return nil
}

func (g *MemoryGateway) Owns(url string) bool {
	return strings.HasPrefix(url, g.baseURL+"/"+keyPrefix)
}

// Has reports whether url is currently stored.
func (g *MemoryGateway) Has(url string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.objects[url]
	return ok
}

func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}
