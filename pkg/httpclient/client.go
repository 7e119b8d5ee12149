// Package httpclient builds the resty clients used for outbound API calls.
package httpclient

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options for New. Zero values fall back to defaults.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// New returns a resty client that retries transport errors and 5xx responses.
func New(opts Options) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 3 * time.Second
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})
	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}
	return client
}
