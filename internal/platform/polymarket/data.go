package polymarket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysight/internal/domain"
)

const (
	// pageBatch is how many pages are fetched in parallel per round.
	pageBatch = 10

	// rateLimitRetries bounds 429 retries per request.
	rateLimitRetries = 3
	rateLimitSleep   = 5 * time.Second
)

// DataConfig holds the Data API client parameters.
type DataConfig struct {
	BaseURL        string
	RequestsPerMin int
	PageSize       int
	MaxItems       int // safety bound across all pages of one listing
}

// DataClient is the read-only client for the venue's Data API: positions,
// closed positions, portfolio value, activity, profile, and market metadata.
// All requests share a client-side requests-per-minute budget enforced by
// the rate limiter.
type DataClient struct {
	cfg        DataConfig
	httpClient *http.Client
	limiter    domain.RateLimiter
}

// NewDataClient creates a DataClient. limiter may be nil, in which case no
// client-side pacing is applied.
func NewDataClient(cfg DataConfig, limiter domain.RateLimiter) *DataClient {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50_000
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 100
	}
	return &DataClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
	}
}

// Positions returns all open positions for the address. Missing data is
// treated as empty.
func (c *DataClient) Positions(ctx context.Context, address string) ([]domain.OpenPosition, error) {
	params := url.Values{"user": {address}}
	rows, err := fetchAllPages[APIPosition](ctx, c, "/positions", params)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OpenPosition, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain(address))
	}
	return out, nil
}

// ClosedPositions returns all resolved positions for the address.
func (c *DataClient) ClosedPositions(ctx context.Context, address string) ([]domain.ClosedPosition, error) {
	params := url.Values{"user": {address}}
	rows, err := fetchAllPages[APIClosedPosition](ctx, c, "/closed-positions", params)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ClosedPosition, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain(address))
	}
	return out, nil
}

// Value returns the address's total portfolio value in USD. A missing user
// maps to zero.
func (c *DataClient) Value(ctx context.Context, address string) (float64, error) {
	body, err := c.doGet(ctx, "/value", url.Values{"user": {address}})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	vals, err := decodeOneOrMany[APIValue](body)
	if err != nil {
		return 0, fmt.Errorf("polymarket/data: decode value: %w", err)
	}
	if len(vals) == 0 {
		return 0, nil
	}
	return vals[0].Value, nil
}

// Profile returns the address's public profile. A missing profile maps to
// the zero value.
func (c *DataClient) Profile(ctx context.Context, address string) (APIProfile, error) {
	body, err := c.doGet(ctx, "/profile", url.Values{"address": {address}})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return APIProfile{}, nil
		}
		return APIProfile{}, err
	}
	profiles, err := decodeOneOrMany[APIProfile](body)
	if err != nil {
		return APIProfile{}, fmt.Errorf("polymarket/data: decode profile: %w", err)
	}
	if len(profiles) == 0 {
		return APIProfile{}, nil
	}
	return profiles[0], nil
}

// Activity returns the address's recent activity rows.
func (c *DataClient) Activity(ctx context.Context, address string) ([]APIActivity, error) {
	params := url.Values{"user": {address}}
	return fetchAllPages[APIActivity](ctx, c, "/activity", params)
}

// Market returns metadata for a single market. A missing market maps to the
// zero value with ok=false.
func (c *DataClient) Market(ctx context.Context, conditionID string) (APIMarket, bool, error) {
	body, err := c.doGet(ctx, "/markets", url.Values{"condition_ids": {conditionID}})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return APIMarket{}, false, nil
		}
		return APIMarket{}, false, err
	}
	markets, err := decodeOneOrMany[APIMarket](body)
	if err != nil {
		return APIMarket{}, false, fmt.Errorf("polymarket/data: decode market: %w", err)
	}
	if len(markets) == 0 {
		return APIMarket{}, false, nil
	}
	return markets[0], true, nil
}

// fetchAllPages walks an offset/limit listing until a short page, fetching
// pageBatch pages in parallel per round, bounded by cfg.MaxItems.
func fetchAllPages[T any](ctx context.Context, c *DataClient, path string, params url.Values) ([]T, error) {
	pageSize := c.cfg.PageSize

	var all []T
	offset := 0
	for {
		pages := make([][]T, pageBatch)

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < pageBatch; i++ {
			off := offset + i*pageSize
			g.Go(func() error {
				page, err := fetchPage[T](gctx, c, path, params, off, pageSize)
				if err != nil {
					return err
				}
				pages[i] = page
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, page := range pages {
			all = append(all, page...)
			if len(page) < pageSize {
				return capItems(all, c.cfg.MaxItems), nil
			}
		}
		if len(all) >= c.cfg.MaxItems {
			return capItems(all, c.cfg.MaxItems), nil
		}
		offset += pageBatch * pageSize
	}
}

func capItems[T any](items []T, max int) []T {
	if len(items) > max {
		return items[:max]
	}
	return items
}

func fetchPage[T any](ctx context.Context, c *DataClient, path string, params url.Values, offset, limit int) ([]T, error) {
	p := url.Values{}
	for k, v := range params {
		p[k] = v
	}
	p.Set("offset", strconv.Itoa(offset))
	p.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, path, p)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	items, err := decodeOneOrMany[T](body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: decode %s page at %d: %w", path, offset, err)
	}
	return items, nil
}

// doGet performs one rate-limited GET. 429 responses sleep and retry a few
// times before surfacing.
func (c *DataClient) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, "data_api", c.cfg.RequestsPerMin, time.Minute); err != nil {
				return nil, err
			}
		}

		body, err := c.getOnce(ctx, path, params)
		if err != nil && errors.Is(err, domain.ErrRateLimited) && attempt < rateLimitRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(rateLimitSleep):
			}
			continue
		}
		return body, err
	}
}

func (c *DataClient) getOnce(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.cfg.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: read %s: %w", path, err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("polymarket/data: get %s: %w", path, err)
	}
	return body, nil
}
