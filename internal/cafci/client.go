// Package cafci is the client for the public CAFCI fund API: the bulk master
// list of funds and classes and the per-class detail ("ficha") record.
package cafci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/model"
)

// MasterIncludes are the relation expansions requested on the master list.
const MasterIncludes = "entidad;depositaria,entidad;gerente,tipoRenta,region,benchmark,horizonte,duration,tipo_fondo,clase_fondo"

// DefaultUserAgent is a desktop Chrome user agent; upstream rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// API is the upstream surface used by the sync pipeline.
type API interface {
	FetchMaster(ctx context.Context) (*Master, error)
	FetchDetail(ctx context.Context, fundID, classID string) (*model.Detail, error)
}

// Master is the decoded master list plus the raw envelope bytes, which callers
// persist as an audit artifact before flattening.
type Master struct {
	Funds []model.Fund
	Raw   []byte
}

// Config holds the upstream connection settings.
type Config struct {
	BaseURL     string
	Origin      string
	Referer     string
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	RegionID    string
	Status      string
}

// DefaultConfig returns the settings used against the production API.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.pub.cafci.org.ar",
		Origin:      "https://www.cafci.org.ar",
		Referer:     "https://www.cafci.org.ar/",
		UserAgent:   DefaultUserAgent,
		Timeout:     15 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		RegionID:    "1",
		Status:      "1",
	}
}

// Client talks to the CAFCI API. Every request carries the browser headers,
// is bounded by Config.Timeout and is retried on 5xx, 429, timeouts and
// connection errors with exponential delay starting at Config.BaseDelay.
type Client struct {
	httpClient *http.Client
	cfg        Config
	log        zerolog.Logger
}

// NewClient creates a client. Zero values in cfg fall back to DefaultConfig.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newHeaderTransport(nil, cfg),
		},
		cfg: cfg,
		log: logger.With().Str("component", "cafci").Logger(),
	}
}

// MasterURL returns the bulk master list URL. limit=0 disables pagination.
func (c *Client) MasterURL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/fondo?", c.cfg.BaseURL)
	if c.cfg.Status != "" {
		fmt.Fprintf(&b, "estado=%s&", c.cfg.Status)
	}
	fmt.Fprintf(&b, "include=%s&limit=0&order=clase_fondos.nombre", MasterIncludes)
	if c.cfg.RegionID != "" {
		fmt.Fprintf(&b, "&regionId=%s", c.cfg.RegionID)
	}
	return b.String()
}

// DetailURL returns the detail endpoint of a class.
func (c *Client) DetailURL(fundID, classID string) string {
	return fmt.Sprintf("%s/fondo/%s/clase/%s/ficha", c.cfg.BaseURL, fundID, classID)
}

// FetchMaster retrieves the full fund catalog with nested class stubs.
//
// Returns:
//   - *Master: Funds in source order and the raw response body
//   - error: ErrUpstreamUnavailable when the request failed after retries,
//     ErrMalformedResponse when the body is not a {data: [...]} envelope
func (c *Client) FetchMaster(ctx context.Context) (*Master, error) {
	body, err := c.get(ctx, c.MasterURL())
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUpstreamUnavailable, err)
	}

	var envelope MasterResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: master list: %w", apperrors.ErrMalformedResponse, err)
	}
	data := strings.TrimSpace(string(envelope.Data))
	if data == "" || data == "null" || !strings.HasPrefix(data, "[") {
		return nil, fmt.Errorf("%w: master list has no data array", apperrors.ErrMalformedResponse)
	}

	var raw []Fund
	if err := json.Unmarshal(envelope.Data, &raw); err != nil {
		return nil, fmt.Errorf("%w: master list funds: %w", apperrors.ErrMalformedResponse, err)
	}

	funds := ToFunds(raw)
	c.log.Info().Int("funds", len(funds)).Int("bytes", len(body)).Msg("Fetched master list")
	return &Master{Funds: funds, Raw: body}, nil
}

// FetchDetail retrieves the detail record of one class.
//
// A 2xx response with an empty or absent data block yields (nil, nil): the
// class exists but has no published detail yet.
//
// Returns:
//   - *model.Detail: The decoded record, or nil when nothing is published
//   - error: ErrRateLimited on 429, ErrUnreachable after repeated timeouts or
//     connection errors, *StatusError on other non-2xx statuses, ErrMalformedResponse
//     when the body does not decode
func (c *Client) FetchDetail(ctx context.Context, fundID, classID string) (*model.Detail, error) {
	body, err := c.get(ctx, c.DetailURL(fundID, classID))
	if err != nil {
		return nil, err
	}

	var envelope DetailResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: detail %s/%s: %w", apperrors.ErrMalformedResponse, fundID, classID, err)
	}
	if isEmptyJSON(envelope.Data) {
		return nil, nil
	}

	var data DetailData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: detail %s/%s: %w", apperrors.ErrMalformedResponse, fundID, classID, err)
	}

	detail := toDetail(fundID, classID, data, envelope.Data)
	return &detail, nil
}

// get issues a GET with retries and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("%w: %w", apperrors.ErrUnreachable, classifyTransport(err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("%w: reading body: %w", apperrors.ErrUnreachable, classifyTransport(err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %s", apperrors.ErrRateLimited, endpoint)
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		}

		se := &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
		if se.Retryable() {
			return nil, se
		}
		return nil, backoff.Permanent(se)
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn().
			Err(err).
			Str("url", endpoint).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Upstream request failed, retrying")
	}

	body, err := backoff.RetryNotifyWithData(op, c.newBackOff(ctx), notify)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = c.cfg.BaseDelay * 8
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxAttempts-1)), ctx)
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == "{}" || s == "[]" || s == `""`
}
