package razorpay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/manav-trails/backend/pkg/httpclient"
)

// ErrCaptureFailed wraps any non-2xx answer of the capture API.
var ErrCaptureFailed = errors.New("razorpay capture failed")

// Client calls the Razorpay REST API with key id / key secret basic auth.
type Client struct {
	http *resty.Client
}

// NewClient creates an API client. baseURL is normally https://api.razorpay.com.
func NewClient(baseURL, keyID, keySecret string) *Client {
	c := httpclient.New(httpclient.Options{
		BaseURL:    baseURL,
		Timeout:    8 * time.Second,
		RetryCount: 2,
	}).SetBasicAuth(keyID, keySecret)
	return &Client{http: c}
}

type captureRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Capture finalizes an authorized payment for amount (minor units).
func (c *Client) Capture(ctx context.Context, paymentID string, amount int64, currency string) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(captureRequest{Amount: amount, Currency: currency}).
		SetError(&apiErr).
		Post("/v1/payments/" + url.PathEscape(paymentID) + "/capture")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if resp.IsError() {
		desc := apiErr.Error.Description
		if desc == "" {
			desc = resp.String()
		}
		return fmt.Errorf("%w: status %d: %s", ErrCaptureFailed, resp.StatusCode(), desc)
	}
	return nil
}
