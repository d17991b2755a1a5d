// Package restclient implements the REST transport shared by every
// venue collaborator: rate-limited, retried on 5xx, and optionally
// dry-run for mutating calls. It generalizes the teacher's
// internal/exchange.Client (a single hardcoded Polymarket CLOB client)
// into a venue-agnostic client whose credential injection is supplied by
// a CredentialProvider rather than baked-in wallet signing.
package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"marketcore/internal/errs"
	"marketcore/internal/ratelimit"
)

// Client is a rate-limited REST client for one venue's base URL.
type Client struct {
	http    *resty.Client
	limiter *ratelimit.Limiter
	creds   CredentialProvider
	dryRun  bool
	logger  *slog.Logger
}

// Config carries the knobs NewClient needs, kept separate from the
// top-level config.Config so this package has no import-cycle back to it.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	DryRun       bool
}

// NewClient builds a REST client for a single venue.
func NewClient(cfg Config, limiter *ratelimit.Limiter, creds CredentialProvider, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = 5 * time.Second
	}
	if creds == nil {
		creds = NoopCredentialProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		limiter: limiter,
		creds:   creds,
		dryRun:  cfg.DryRun,
		logger:  logger,
	}
}

// DryRun reports whether this client was configured to short-circuit
// mutating calls.
func (c *Client) DryRun() bool { return c.dryRun }

// Get issues a rate-limited GET, decoding the JSON body into result.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, weight float64, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, weight); err != nil {
			return errs.Wrap(errs.KindShutdown, "restclient.Get", "rate limit wait cancelled", err)
		}
	}

	req := c.http.R().SetContext(ctx).SetResult(result)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	for k, v := range c.creds.QueryParams() {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Get(path)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "restclient.Get", fmt.Sprintf("GET %s", path), err)
	}
	if resp.StatusCode() != http.StatusOK {
		return errs.WrapStatus("restclient.Get", fmt.Sprintf("GET %s", path), resp.StatusCode(), resp.String())
	}
	return nil
}

// Post issues a rate-limited, authenticated POST with a JSON body,
// decoding the JSON response into result. It is a no-op success when the
// client is in dry-run mode.
func (c *Client) Post(ctx context.Context, path string, body any, weight float64, result any) error {
	return c.mutate(ctx, http.MethodPost, path, body, weight, result)
}

// Delete issues a rate-limited, authenticated DELETE with a JSON body,
// decoding the JSON response into result. It is a no-op success when the
// client is in dry-run mode.
func (c *Client) Delete(ctx context.Context, path string, body any, weight float64, result any) error {
	return c.mutate(ctx, http.MethodDelete, path, body, weight, result)
}

func (c *Client) mutate(ctx context.Context, method, path string, body any, weight float64, result any) error {
	if c.dryRun {
		c.logger.Info("dry-run: skipping mutating request", "method", method, "path", path)
		return nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, weight); err != nil {
			return errs.Wrap(errs.KindShutdown, "restclient.mutate", "rate limit wait cancelled", err)
		}
	}

	req := c.http.R().SetContext(ctx).SetResult(result)
	var raw []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.KindClient, "restclient.mutate", "encode request body", err)
		}
		raw = encoded
		req.SetBody(raw)
	}
	headers, err := c.creds.Headers(method, path, raw)
	if err != nil {
		return errs.Wrap(errs.KindClient, "restclient.mutate", "build credential headers", err)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	for k, v := range c.creds.QueryParams() {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errs.Wrap(errs.KindNetwork, "restclient.mutate", fmt.Sprintf("%s %s", method, path), err)
	}
	if resp.StatusCode() >= 300 {
		return errs.WrapStatus("restclient.mutate", fmt.Sprintf("%s %s", method, path), resp.StatusCode(), resp.String())
	}
	return nil
}
