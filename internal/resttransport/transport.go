// Package resttransport is the platform's REST client: retry with
// exponential backoff and jitter, Retry-After-aware 429 handling,
// 401-triggered token refresh, and a page-ceiling-bounded pagination
// helper.
package resttransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/R3E-Network/sfmc-inv2/internal/auth"
	"github.com/R3E-Network/sfmc-inv2/internal/model"
	"github.com/R3E-Network/sfmc-inv2/internal/ratelimit"
	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

const (
	maxAttempts       = 3
	baseBackoff       = 1 * time.Second
	defaultBodyLimit  = int64(10 << 20) // 10 MiB
	defaultPageSize   = 50
	defaultPageCeiling = 10000
)

// Result is what a single REST call returns.
type Result struct {
	OK     bool
	Status int
	Data   []byte
	Err    *model.ExtractionError
}

// Transport is the REST client shared by all REST-backed extractors.
type Transport struct {
	BaseURL string

	client  *http.Client
	tokens  *auth.TokenManager
	limiter *ratelimit.Limiter
	log     *logger.Logger

	// PageCeiling bounds pagination.
	PageCeiling int
}

// New constructs a REST Transport.
func New(baseURL string, client *http.Client, tokens *auth.TokenManager, limiter *ratelimit.Limiter, log *logger.Logger) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("rest-transport")
	}
	return &Transport{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		client:      client,
		tokens:      tokens,
		limiter:     limiter,
		log:         log,
		PageCeiling: defaultPageCeiling,
	}
}

// Do performs one REST call, retrying transient failures and refreshing
// the token once on a first 401.
func (t *Transport) Do(ctx context.Context, kind ratelimit.Kind, method, path string, query url.Values, body interface{}) (*Result, error) {
	reauthAttempted := false
	var lastResult *internalResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if t.limiter != nil {
			release, err := t.limiter.Acquire(ctx, kind)
			if err != nil {
				return nil, err
			}
			result, err := t.once(ctx, method, path, query, body)
			if err != nil {
				release(ratelimit.OutcomeFailure)
				return nil, err
			}
			if result.OK {
				release(ratelimit.OutcomeSuccess)
			} else {
				release(ratelimit.OutcomeFailure)
			}
			lastResult = result
		} else {
			result, err := t.once(ctx, method, path, query, body)
			if err != nil {
				return nil, err
			}
			lastResult = result
		}

		if lastResult.OK {
			return &lastResult.Result, nil
		}

		if lastResult.Status == http.StatusUnauthorized && !reauthAttempted {
			reauthAttempted = true
			if t.tokens != nil {
				if _, err := t.tokens.ForceRefresh(ctx, fmt.Sprintf("401 on %s %s", method, path)); err != nil {
					return &lastResult.Result, err
				}
			}
			attempt-- // the post-refresh retry does not count against maxAttempts
			continue
		}

		// Status 0 means the request never produced an HTTP response
		// (network error); those retry alongside the retryable codes.
		if lastResult.Status != 0 && !retryableStatus(lastResult.Status) {
			return &lastResult.Result, nil
		}
		if attempt == maxAttempts {
			return &lastResult.Result, nil
		}

		wait := backoffFor(attempt, lastResult.retryAfter)
		t.log.WithField("attempt", attempt).WithField("status", lastResult.Status).
			WithField("wait", wait.String()).Warn("retrying REST call")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if lastResult == nil {
		return nil, fmt.Errorf("no attempt performed for %s %s", method, path)
	}
	return &lastResult.Result, nil
}

// internalResult carries the Retry-After hint alongside the public Result.
type internalResult struct {
	Result
	retryAfter time.Duration
}

func (t *Transport) once(ctx context.Context, method, path string, query url.Values, body interface{}) (*internalResult, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	u := t.BaseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.tokens != nil {
		tok, err := t.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &internalResult{Result: Result{
			OK:  false,
			Err: model.NewExtractionError(model.ErrHTTPRetryExhausted, "rest-transport", "", err),
		}}, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, defaultBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	ir := &internalResult{Result: Result{
		Status: resp.StatusCode,
		Data:   data,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
	}}
	if resp.StatusCode == http.StatusTooManyRequests {
		ir.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	if !ir.OK {
		code := model.ErrHTTPNonRetryable
		if retryableStatus(resp.StatusCode) {
			code = model.ErrHTTPRetryExhausted
		}
		ir.Err = model.NewExtractionError(code, "rest-transport", "", fmt.Errorf("status %d", resp.StatusCode))
	}
	return ir, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func backoffFor(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	d := baseBackoff * time.Duration(1<<uint(attempt-1))
	jitter := 0.2 * float64(d) * (rand.Float64()*2 - 1) // +/-20%
	return d + time.Duration(jitter)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
