package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"listing-portal/internal/ratelimit"

	"github.com/sirupsen/logrus"
)

// Client talks to the external property data provider. It owns retry,
// backoff and rate-limit handling; callers see either data, ErrNotFound, or
// an UnavailableError once retries are exhausted.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
	pageSize   int
	quota      *ratelimit.QuotaLimiter
	pacer      *ratelimit.Pacer
	breaker    *CircuitBreaker
	logger     *logrus.Logger
}

// ClientConfig holds provider client settings.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	PageSize      int
	RequestDelay  time.Duration
	RequestJitter time.Duration
}

// NewClient creates a provider client. The quota limiter may be shared with
// other components (e.g. a stats endpoint) and may be nil.
func NewClient(cfg ClientConfig, quota *ratelimit.QuotaLimiter, logger *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 50
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		pageSize:   cfg.PageSize,
		quota:      quota,
		pacer:      ratelimit.NewPacer(cfg.RequestDelay, cfg.RequestJitter),
		breaker:    NewCircuitBreaker(5, 10*time.Minute),
		logger:     logger,
	}
}

// GetPropertyRecords fetches property records matching the filters, paging
// through upstream results transparently up to cap records (cap <= 0 means
// no cap). Pages are fetched sequentially through the pacer to respect the
// provider's rate limits.
func (c *Client) GetPropertyRecords(ctx context.Context, f Filters, cap int) ([]PropertyRecord, error) {
	pageSize := c.pageSize
	if f.Limit > 0 && f.Limit < pageSize {
		pageSize = f.Limit
	}

	var records []PropertyRecord
	offset := f.Offset

	for {
		// Never request more than the cap still allows.
		size := pageSize
		if cap > 0 && cap-len(records) < size {
			size = cap - len(records)
		}

		c.pacer.Wait()

		params := f.queryValues()
		params.Set("limit", strconv.Itoa(size))
		params.Set("offset", strconv.Itoa(offset))

		var page []PropertyRecord
		err := c.doJSON(ctx, "/properties", params, &page)
		if errors.Is(err, ErrNotFound) {
			// The provider answers 404 for an empty result set.
			break
		}
		if err != nil {
			return nil, err
		}

		records = append(records, page...)
		offset += len(page)

		// The cap applies even when the page is short, so it is enforced
		// before the short-page termination check.
		if cap > 0 && len(records) >= cap {
			records = records[:cap]
			break
		}
		if len(page) < size {
			break
		}
	}

	return records, nil
}

// GetPropertyByID fetches the full record for one provider id.
func (c *Client) GetPropertyByID(ctx context.Context, id string) (*PropertyRecord, error) {
	var record PropertyRecord
	if err := c.doJSON(ctx, "/properties/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetPropertyValue fetches the sale value estimate for one address.
func (c *Client) GetPropertyValue(ctx context.Context, address, city, state string) (*Estimate, error) {
	return c.getEstimate(ctx, "/avm/value", address, city, state)
}

// GetPropertyRent fetches the long-term rent estimate for one address.
func (c *Client) GetPropertyRent(ctx context.Context, address, city, state string) (*Estimate, error) {
	return c.getEstimate(ctx, "/avm/rent/long-term", address, city, state)
}

// GetValuation requests value and rent estimates concurrently. Each side of
// the result carries its own error so a failure in one does not suppress a
// success in the other.
func (c *Client) GetValuation(ctx context.Context, address, city, state string) Valuation {
	var v Valuation
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		v.Value, v.ValueErr = c.GetPropertyValue(ctx, address, city, state)
	}()
	go func() {
		defer wg.Done()
		v.Rent, v.RentErr = c.GetPropertyRent(ctx, address, city, state)
	}()
	wg.Wait()

	return v
}

func (c *Client) getEstimate(ctx context.Context, path, address, city, state string) (*Estimate, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("city", city)
	params.Set("state", state)

	var estimate Estimate
	if err := c.doJSON(ctx, path, params, &estimate); err != nil {
		return nil, err
	}
	return &estimate, nil
}

// doJSON performs one logical request with bounded exponential backoff.
// Transient failures (network errors, 5xx, 429) are retried; 404 maps to
// ErrNotFound immediately; other 4xx fail without retry.
func (c *Client) doJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if !c.breaker.CanProceed() {
		return &UnavailableError{Err: errors.New("circuit breaker open")}
	}
	if c.quota != nil && !c.quota.Allow() {
		return &UnavailableError{Err: errors.New("local request quota exhausted")}
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.breaker.RecordFailure()
			lastErr = err
			c.logger.WithError(err).WithField("path", path).Warnf("upstream request failed (attempt %d/%d)", attempt+1, c.maxRetries+1)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode upstream response: %w", err)
			}
			c.breaker.RecordSuccess()
			return nil

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			c.breaker.RecordSuccess()
			return ErrNotFound

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			c.breaker.RecordFailure()
			lastErr = &UnavailableError{Status: resp.StatusCode}
			c.logger.WithField("path", path).Warnf("upstream returned %d (attempt %d/%d)", resp.StatusCode, attempt+1, c.maxRetries+1)
			continue

		default:
			resp.Body.Close()
			c.breaker.RecordSuccess()
			return fmt.Errorf("upstream request failed: status %d", resp.StatusCode)
		}
	}

	if IsUnavailable(lastErr) {
		return lastErr
	}
	return &UnavailableError{Err: lastErr}
}

// backoff sleeps for the exponential retry delay, honoring cancellation.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.retryDelay * time.Duration(1<<(attempt-1))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// queryValues maps the filter fields onto provider query parameters.
func (f Filters) queryValues() url.Values {
	params := url.Values{}
	if f.Address != "" {
		params.Set("address", f.Address)
	}
	if f.City != "" {
		params.Set("city", f.City)
	}
	if f.State != "" {
		params.Set("state", f.State)
	}
	if f.Zip != "" {
		params.Set("zipCode", f.Zip)
	}
	if f.Latitude != nil {
		params.Set("latitude", strconv.FormatFloat(*f.Latitude, 'f', -1, 64))
	}
	if f.Longitude != nil {
		params.Set("longitude", strconv.FormatFloat(*f.Longitude, 'f', -1, 64))
	}
	if f.Radius != nil {
		params.Set("radius", strconv.FormatFloat(*f.Radius, 'f', -1, 64))
	}
	return params
}
