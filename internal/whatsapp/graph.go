package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/manav-trails/backend/pkg/httpclient"
)

// ErrSendFailed wraps non-2xx answers of the Graph API.
var ErrSendFailed = errors.New("whatsapp send failed")

// GraphClient sends template messages through the WhatsApp Cloud API.
type GraphClient struct {
	http        *resty.Client
	messagesURL string
}

// NewGraphClient creates a client. messagesURL is the full
// https://graph.facebook.com/<version>/<phone-number-id>/messages endpoint.
func NewGraphClient(messagesURL, token string) *GraphClient {
	c := httpclient.New(httpclient.Options{Timeout: 10 * time.Second, RetryCount: 2}).
		SetAuthToken(token)
	return &GraphClient{http: c, messagesURL: messagesURL}
}

type templateMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Template         template `json:"template"`
}

type template struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTemplate sends a template message with text body parameters in order.
func (g *GraphClient) SendTemplate(ctx context.Context, to, name, lang string, bodyParams ...string) error {
	msg := templateMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         template{Name: name, Language: language{Code: lang}},
	}
	if len(bodyParams) > 0 {
		params := make([]parameter, 0, len(bodyParams))
		for _, p := range bodyParams {
			params = append(params, parameter{Type: "text", Text: p})
		}
		msg.Template.Components = []component{{Type: "body", Parameters: params}}
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(g.messagesURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode(), resp.String())
	}
	return nil
}
