package transport

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/capsaicin/scanrules/internal/httpmsg"
)

const maxBackoff = 30 * time.Second

// Options configures a Client. Zero values fall back to the defaults noted on
// each field.
type Options struct {
	Timeout time.Duration // per request, 10s
	// RateLimit is requests per second per host; 0 disables limiting.
	RateLimit    int
	Retries      int
	MaxBodyBytes int64 // 10 MiB

	BreakerThreshold int           // consecutive failures before a host is cut off, 10
	BreakerCooldown  time.Duration // 30s

	Logger *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 10 << 20
	}
	if o.BreakerThreshold <= 0 {
		o.BreakerThreshold = 10
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	return o
}

// Client sends scan traffic and hands every exchange back as an
// httpmsg.Message. Redirects are never followed.
type Client struct {
	http     *http.Client
	opts     Options
	limiters *hostLimiters
	breaker  *breaker
	logger   zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewClient(opts Options) *Client {
	opts = opts.withDefaults()

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   50,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ResponseHeaderTimeout: opts.Timeout,
				ExpectContinueTimeout: time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		opts:     opts,
		limiters: newHostLimiters(opts.RateLimit),
		breaker:  newBreaker(opts.BreakerThreshold, opts.BreakerCooldown, logger),
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Client) Do(req *http.Request) (*httpmsg.Message, error) {
	return c.Send(req.Context(), req)
}

// Send performs req under the host's rate limit, retrying transport errors,
// 5xx and 429 responses. When retries run out on an error status the last
// response is returned as a message rather than an error.
func (c *Client) Send(ctx context.Context, req *http.Request) (*httpmsg.Message, error) {
	if req.URL == nil || req.URL.Host == "" {
		return nil, fmt.Errorf("request has no host: %q", req.URL)
	}
	host := req.URL.Host

	if err := c.breaker.allow(host); err != nil {
		return nil, err
	}
	if err := c.limiters.wait(ctx, host); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req = req.WithContext(ctx)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, wait, err := c.attempt(req)
		final := attempt >= c.opts.Retries

		switch {
		case err != nil:
			lastErr = err
			if final {
				c.breaker.failure(host)
				return nil, lastErr
			}
		case msg.Response.StatusCode >= 500:
			c.breaker.failure(host)
			if final {
				return msg, nil
			}
		case msg.Response.StatusCode == http.StatusTooManyRequests:
			if final {
				return msg, nil
			}
		default:
			c.breaker.success(host)
			return msg, nil
		}

		if wait <= 0 {
			wait = c.backoff(attempt)
		}
		c.logger.Debug().
			Str("url", req.URL.String()).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("retrying request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}
	}
}

// attempt sends req once. wait is the server's Retry-After hint, if any.
func (c *Client) attempt(req *http.Request) (*httpmsg.Message, time.Duration, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}

	return httpmsg.FromHTTP(req, resp, body), retryAfter(resp.Header.Get("Retry-After")), nil
}

// backoff is full jitter over an exponential ceiling starting at one second.
func (c *Client) backoff(attempt int) time.Duration {
	ceiling := maxBackoff
	if attempt < 5 {
		ceiling = time.Second << attempt
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return time.Duration(c.rng.Int63n(int64(ceiling)))
}

// retryAfter reads the delay-seconds form only; HTTP-date hints are ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
