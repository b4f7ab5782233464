package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BookSource supplies the top of book for a token. The paper simulator uses
// it to decide immediate fills; a fake implementation serves tests.
type BookSource interface {
	BestBidAsk(ctx context.Context, tokenID string) (bid, ask float64, err error)
}

// BookClient fetches order book snapshots from the CLOB's public book
// endpoint. No authentication is required.
type BookClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBookClient creates a BookClient against the given CLOB host.
func NewBookClient(baseURL string) *BookClient {
	return &BookClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

var _ BookSource = (*BookClient)(nil)

// BestBidAsk fetches the book for a token and returns its top of book.
func (b *BookClient) BestBidAsk(ctx context.Context, tokenID string) (float64, float64, error) {
	u := b.baseURL + "/book?" + url.Values{"token_id": {tokenID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("polymarket/book: create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("polymarket/book: get %s: %w", tokenID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("polymarket/book: read %s: %w", tokenID, err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return 0, 0, fmt.Errorf("polymarket/book: get %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return 0, 0, fmt.Errorf("polymarket/book: decode %s: %w", tokenID, err)
	}

	bid, ask := book.BestBidAsk()
	return bid, ask, nil
}
