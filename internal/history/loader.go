// Package history wraps the relay's one-shot transcript endpoint.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/emilabos/scrappy-chat/internal/codec"
	"github.com/emilabos/scrappy-chat/internal/domain"
	"github.com/emilabos/scrappy-chat/internal/log"
)

type historyEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Lines []string `json:"lines"`
	} `json:"data"`
}

// Loader fetches the transcript up to the current moment and maps it
// through the codec. Fetch failures are recoverable: the session
// proceeds with an empty transcript.
type Loader struct {
	baseURL string
	httpc   *http.Client
	sf      singleflight.Group
	clock   func() time.Time
	logger  zerolog.Logger
}

func NewLoader(baseURL string) *Loader {
	return &Loader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
		clock:   time.Now,
		logger:  log.L().With().Str("component", "history").Logger(),
	}
}

// Fetch returns the transcript as Historical messages in original order.
// Concurrent calls are collapsed into one request.
func (l *Loader) Fetch(ctx context.Context) ([]domain.ChatMessage, error) {
	v, err, _ := l.sf.Do("history", func() (interface{}, error) {
		return l.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ChatMessage), nil
}

func (l *Loader) fetch(ctx context.Context) ([]domain.ChatMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/v1/history", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHistoryFetch, err)
	}

	resp, err := l.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHistoryFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrHistoryFetch, resp.StatusCode)
	}

	var env historyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrHistoryFetch, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrHistoryFetch, env.Error)
	}

	stamp := domain.Stamp(l.clock())
	messages := make([]domain.ChatMessage, 0, len(env.Data.Lines))
	for _, line := range env.Data.Lines {
		sender, body, err := codec.Decode(line)
		if err != nil {
			l.logger.Warn().Err(err).Msg("dropping malformed transcript line")
			continue
		}
		messages = append(messages, domain.ChatMessage{
			Sender:    sender,
			Body:      body,
			Timestamp: stamp,
			Origin:    domain.OriginHistorical,
		})
	}
	return messages, nil
}
