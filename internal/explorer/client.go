// Package explorer queries the Mezo testnet block explorer for token
// transfer history. The explorer is read-only; balances and transfers come
// from the chain directly.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mezo-lite/internal/config"
	"github.com/mezo-lite/internal/logging"
	"github.com/mezo-lite/internal/types"
)

// Client fetches token transfer history from a Blockscout-style API
type Client struct {
	baseURL     string
	client      *http.Client
	rateLimiter *rateLimiter
}

// rateLimiter implements a simple token bucket rate limiter
type rateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newRateLimiter(requestsPerSecond float64) *rateLimiter {
	return &rateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond,
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

func (r *rateLimiter) wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now

	if r.tokens < 1 {
		waitTime := time.Duration((1 - r.tokens) / r.refillRate * float64(time.Second))
		r.mu.Unlock()
		time.Sleep(waitTime)
		r.mu.Lock()
		r.tokens = 0
		r.lastRefill = time.Now()
	} else {
		r.tokens--
	}
}

// NewClient creates a new explorer API client
func NewClient(cfg *config.ExplorerConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3.0
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
		rateLimiter: newRateLimiter(rps),
	}
}

// tokenTransferItem is a single transfer in the explorer response
type tokenTransferItem struct {
	TransactionHash string `json:"transaction_hash"`
	Timestamp       string `json:"timestamp"`
	BlockNumber     uint64 `json:"block_number"`
	From            struct {
		Hash string `json:"hash"`
	} `json:"from"`
	To struct {
		Hash string `json:"hash"`
	} `json:"to"`
	Total struct {
		Value    string `json:"value"`
		Decimals string `json:"decimals"`
	} `json:"total"`
	Token struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals string `json:"decimals"`
	} `json:"token"`
}

// tokenTransfersResponse is the paginated explorer response
type tokenTransfersResponse struct {
	Items          []tokenTransferItem `json:"items"`
	NextPageParams map[string]any      `json:"next_page_params"`
}

// TokenTransfers returns the ERC-20 transfer history of an address for a
// specific token, newest first. Incoming and outgoing transfers are fetched
// separately and merged, mirroring how the explorer filters them.
func (c *Client) TokenTransfers(ctx context.Context, address, token string, maxPages int) ([]types.Transaction, error) {
	if maxPages <= 0 {
		maxPages = 5
	}

	incoming, err := c.fetchDirection(ctx, address, token, "to", maxPages)
	if err != nil {
		return nil, err
	}

	outgoing, err := c.fetchDirection(ctx, address, token, "from", maxPages)
	if err != nil {
		return nil, err
	}

	// Merge and deduplicate by hash; self transfers appear in both lists
	seen := make(map[string]bool, len(incoming)+len(outgoing))
	merged := make([]types.Transaction, 0, len(incoming)+len(outgoing))
	for _, tx := range append(incoming, outgoing...) {
		if seen[tx.Hash] {
			continue
		}
		seen[tx.Hash] = true
		merged = append(merged, tx)
	}

	sortByTimestampDesc(merged)
	return merged, nil
}

// fetchDirection pages through transfers filtered to one direction
func (c *Client) fetchDirection(ctx context.Context, address, token, filter string, maxPages int) ([]types.Transaction, error) {
	var all []types.Transaction
	pageParams := url.Values{}

	for page := 0; page < maxPages; page++ {
		c.rateLimiter.wait()

		endpoint := fmt.Sprintf("%s/addresses/%s/token-transfers", c.baseURL, address)
		query := url.Values{
			"type":   {"ERC-20"},
			"filter": {filter},
			"token":  {token},
		}
		for key, vals := range pageParams {
			for _, v := range vals {
				query.Add(key, v)
			}
		}

		body, err := c.doRequest(ctx, endpoint+"?"+query.Encode())
		if err != nil {
			return nil, err
		}

		var resp tokenTransfersResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse explorer response: %w", err)
		}

		for _, item := range resp.Items {
			tx, convErr := convertTransfer(item, address)
			if convErr != nil {
				logging.FromContext(ctx).WithError(convErr).Warn("skipping malformed transfer")
				continue
			}
			all = append(all, tx)
		}

		if len(resp.NextPageParams) == 0 {
			break
		}

		pageParams = url.Values{}
		for key, val := range resp.NextPageParams {
			pageParams.Set(key, fmt.Sprintf("%v", val))
		}
	}

	return all, nil
}

// doRequest performs an HTTP GET with retry for rate limiting and transient
// network failures.
func (c *Client) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	const maxRetries = 5
	baseDelay := 1 * time.Second

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to make request: %w", err)
			if attempt < maxRetries {
				if waitErr := sleepBackoff(ctx, attempt, baseDelay, 30*time.Second); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close() // nolint:errcheck // body already read
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			if attempt < maxRetries {
				delay := baseDelay * time.Duration(1<<uint(attempt))
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
						delay = time.Duration(seconds) * time.Second
					}
				}
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
				}
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, types.NewServiceError(types.ErrCodeUpstreamFailure,
				fmt.Sprintf("explorer returned %d: %s", resp.StatusCode, string(body)))
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepBackoff(ctx context.Context, attempt int, baseDelay, maxDelay time.Duration) error {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	}
}

// convertTransfer maps an explorer item to the client-side transaction
// projection. IsReceiving is derived relative to the viewing address.
func convertTransfer(item tokenTransferItem, viewer string) (types.Transaction, error) {
	if item.TransactionHash == "" {
		return types.Transaction{}, fmt.Errorf("transfer missing transaction hash")
	}

	value, ok := new(big.Int).SetString(item.Total.Value, 10)
	if !ok {
		return types.Transaction{}, fmt.Errorf("invalid transfer value %q", item.Total.Value)
	}

	decimals := 18
	if item.Total.Decimals != "" {
		if d, err := strconv.Atoi(item.Total.Decimals); err == nil {
			decimals = d
		}
	} else if item.Token.Decimals != "" {
		if d, err := strconv.Atoi(item.Token.Decimals); err == nil {
			decimals = d
		}
	}

	var timestamp int64
	if item.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, item.Timestamp); err == nil {
			timestamp = t.Unix()
		}
	}

	return types.Transaction{
		Hash:        item.TransactionHash,
		From:        item.From.Hash,
		To:          item.To.Hash,
		Value:       value.String(),
		BlockNumber: item.BlockNumber,
		Timestamp:   timestamp,
		IsReceiving: strings.EqualFold(item.To.Hash, viewer),
		Decimals:    decimals,
		Symbol:      item.Token.Symbol,
		TokenName:   item.Token.Name,
	}, nil
}

func sortByTimestampDesc(txs []types.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp > txs[j].Timestamp
	})
}
