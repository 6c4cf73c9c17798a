// Package ads fetches the interstitial asset catalog from the relay.
// The gate picks one URI uniformly at random each time it becomes
// visible; playback itself belongs to the presentation layer.
package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emilabos/scrappy-chat/internal/log"
)

type Catalog struct {
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger

	mu   sync.Mutex
	uris []string
	rng  *rand.Rand
}

func NewCatalog(baseURL string) *Catalog {
	return &Catalog{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  log.L().With().Str("component", "ads").Logger(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Refresh replaces the catalog with the relay's current asset list.
func (c *Catalog) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/assets/ads.json", nil)
	if err != nil {
		return fmt.Errorf("failed to build ads request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch ad catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch ad catalog: unexpected status %d", resp.StatusCode)
	}

	var uris []string
	if err := json.NewDecoder(resp.Body).Decode(&uris); err != nil {
		return fmt.Errorf("failed to parse ad catalog: %w", err)
	}

	c.mu.Lock()
	c.uris = uris
	c.mu.Unlock()
	return nil
}

// Pick returns a random asset URI, or false when the catalog is empty.
// An empty catalog retries the fetch first, so a relay that was
// unreachable at startup still gets to serve assets later.
func (c *Catalog) Pick() (string, bool) {
	c.mu.Lock()
	empty := len(c.uris) == 0
	c.mu.Unlock()

	if empty {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("ad catalog refresh failed")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.uris) == 0 {
		return "", false
	}
	return c.uris[c.rng.Intn(len(c.uris))], true
}
