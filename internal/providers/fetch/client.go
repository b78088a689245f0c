package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const maxBodySize = 16 << 20

var (
	ErrUnsupportedScheme = errors.New("only http and https URLs are allowed")
	ErrHostUnavailable   = errors.New("upstream unavailable: circuit breaker open")
)

// Options configures the client
type Options struct {
	Timeout   time.Duration
	Retries   int
	RPS       float64 // zero or negative means unlimited
	UserAgent string
}

// Client wraps resty with rate limiting and per-host circuit breakers
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Set
	metrics  *monitoring.Metrics
	mu       sync.RWMutex
}

// NewClient creates the client plugin requests go through
func NewClient(opts Options, metrics *monitoring.Metrics) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		}).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if opts.UserAgent != "" {
		restyClient.SetHeader("User-Agent", opts.UserAgent)
	}
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	c := &Client{
		resty: restyClient,
		breakers: resilience.NewSet(resilience.Settings{
			Trials:   2,
			Window:   time.Minute,
			Cooldown: 30 * time.Second,
			Trip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 10 ||
					(counts.Requests >= 20 && float64(counts.Failures)/float64(counts.Requests) > 0.7)
			},
		}),
		metrics: metrics,
	}
	c.SetRateLimit(opts.RPS)
	return c
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Breakers returns the circuit state per upstream host
func (c *Client) Breakers() map[string]string {
	return c.breakers.States()
}

// Do performs req. A non-2xx status is not an error; transport failures,
// cancellation and open breakers are.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}
	if strings.EqualFold(req.method(), "GET") && req.Body != nil {
		return nil, errors.New("GET request cannot carry a body")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	r := c.build(ctx, req)

	c.metrics.AddFetchesInFlight(1)
	defer c.metrics.AddFetchesInFlight(-1)

	var (
		resp    *resty.Response
		sendErr error
	)
	err = c.breakers.Get(target.Host).Do(func() error {
		resp, sendErr = r.Execute(req.method(), req.URL)
		if sendErr != nil {
			return sendErr
		}
		if resp.StatusCode() >= 500 {
			return fmt.Errorf("upstream status %d", resp.StatusCode())
		}
		return nil
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, ErrHostUnavailable
	case sendErr != nil:
		return nil, fmt.Errorf("request failed: %w", sendErr)
	}
	if len(resp.Body()) > maxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodySize)
	}

	return newResponse(resp), nil
}

func (c *Client) build(ctx context.Context, req Request) *resty.Request {
	c.mu.RLock()
	r := c.resty.R().SetContext(ctx)
	c.mu.RUnlock()

	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}

	switch {
	case len(req.Form) > 0:
		r.SetFormData(req.Form)
	case len(req.FormData) > 0:
		r.SetMultipartFormData(req.FormData)
	case req.Body != nil:
		if s, ok := req.Body.(string); ok {
			r.SetBody(s)
			break
		}
		if r.Header.Get("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/json")
		}
		r.SetBody(req.Body)
	}
	return r
}
