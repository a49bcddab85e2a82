package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/npezzotti/go-chatclient/internal/types"
)

const requestTimeout = 10 * time.Second

// FetchError reports a failed history load. Non-fatal: the caller logs it
// and keeps the previously loaded conversation state.
type FetchError struct {
	LocalId string
	PeerId  string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load history for %s/%s: %s", e.LocalId, e.PeerId, e.Err.Error())
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Loader fetches past messages for a conversation pair from the history
// endpoint.
type Loader struct {
	baseURL string
	token   string
	client  *http.Client
	log     *log.Logger
}

func NewLoader(baseURL, token string, logger *log.Logger) *Loader {
	return &Loader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: requestTimeout},
		log:     logger,
	}
}

// Load fetches the ordered message history between localId and peerId.
func (l *Loader) Load(ctx context.Context, localId, peerId string) ([]types.Message, error) {
	u := fmt.Sprintf("%s/history/%s/%s", l.baseURL, url.PathEscape(localId), url.PathEscape(peerId))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{LocalId: localId, PeerId: peerId, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &FetchError{LocalId: localId, PeerId: peerId, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			LocalId: localId,
			PeerId:  peerId,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var msgs []types.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, &FetchError{LocalId: localId, PeerId: peerId, Err: err}
	}

	return msgs, nil
}
