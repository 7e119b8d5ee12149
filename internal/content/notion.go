package content

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cast"

	"github.com/manav-trails/backend/pkg/httpclient"
)

const notionPageSize = 100

// TrailSummary is the list view of one trail page.
type TrailSummary struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Region     string `json:"region,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Distance   string `json:"distance,omitempty"`
	Duration   string `json:"duration,omitempty"`
	Cover      string `json:"cover,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// Block is a flattened Notion block.
type Block struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	Checked *bool  `json:"checked,omitempty"`
}

// TrailDetail is a trail summary plus its page body.
type TrailDetail struct {
	TrailSummary
	Blocks []Block `json:"blocks"`
}

// NotionClient reads the trails database.
type NotionClient struct {
	http       *resty.Client
	databaseID string
}

// NewNotionClient creates a client for baseURL (https://api.notion.com).
func NewNotionClient(baseURL, token, version, databaseID string) *NotionClient {
	c := httpclient.New(httpclient.Options{BaseURL: baseURL, Timeout: 15 * time.Second, RetryCount: 2}).
		SetAuthToken(token).
		SetHeader("Notion-Version", version)
	return &NotionClient{http: c, databaseID: databaseID}
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type fileRef struct {
	Type     string `json:"type"`
	External *struct {
		URL string `json:"url"`
	} `json:"external,omitempty"`
	File *struct {
		URL string `json:"url"`
	} `json:"file,omitempty"`
}

func (f *fileRef) url() string {
	switch {
	case f == nil:
		return ""
	case f.External != nil:
		return f.External.URL
	case f.File != nil:
		return f.File.URL
	}
	return ""
}

type namedOption struct {
	Name string `json:"name"`
}

type property struct {
	Type        string        `json:"type"`
	Title       []richText    `json:"title"`
	RichText    []richText    `json:"rich_text"`
	Select      *namedOption  `json:"select"`
	Status      *namedOption  `json:"status"`
	MultiSelect []namedOption `json:"multi_select"`
	Number      *float64      `json:"number"`
	URL         *string       `json:"url"`
	Formula     *struct {
		Type    string   `json:"type"`
		String  *string  `json:"string"`
		Number  *float64 `json:"number"`
		Boolean *bool    `json:"boolean"`
	} `json:"formula"`
	Date *struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"date"`
}

// Text flattens a property value to a display string.
func (p property) Text() string {
	switch p.Type {
	case "title":
		return joinText(p.Title)
	case "rich_text":
		return joinText(p.RichText)
	case "select":
		if p.Select != nil {
			return p.Select.Name
		}
	case "status":
		if p.Status != nil {
			return p.Status.Name
		}
	case "multi_select":
		names := make([]string, 0, len(p.MultiSelect))
		for _, o := range p.MultiSelect {
			names = append(names, o.Name)
		}
		return strings.Join(names, ", ")
	case "number":
		if p.Number != nil {
			return cast.ToString(*p.Number)
		}
	case "url":
		if p.URL != nil {
			return *p.URL
		}
	case "formula":
		if f := p.Formula; f != nil {
			switch {
			case f.String != nil:
				return *f.String
			case f.Number != nil:
				return cast.ToString(*f.Number)
			case f.Boolean != nil:
				return cast.ToString(*f.Boolean)
			}
		}
	case "date":
		if p.Date != nil {
			if p.Date.End != "" {
				return p.Date.Start + " to " + p.Date.End
			}
			return p.Date.Start
		}
	}
	return ""
}

func joinText(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return strings.TrimSpace(b.String())
}

type page struct {
	ID         string              `json:"id"`
	Cover      *fileRef            `json:"cover"`
	Properties map[string]property `json:"properties"`
}

type queryResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// QueryTrails lists every page in the trails database.
func (n *NotionClient) QueryTrails(ctx context.Context) ([]TrailSummary, error) {
	var out []TrailSummary
	cursor := ""
	for {
		body := map[string]any{"page_size": notionPageSize}
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		var res queryResponse
		resp, err := n.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&res).
			Post("/v1/databases/" + n.databaseID + "/query")
		if err != nil {
			return nil, fmt.Errorf("notion query: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("notion query: status %d: %s", resp.StatusCode(), resp.String())
		}
		for _, p := range res.Results {
			out = append(out, summarize(p))
		}
		if !res.HasMore || res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

func summarize(p page) TrailSummary {
	props := map[string]property{}
	var title string
	for name, v := range p.Properties {
		props[strings.ToLower(name)] = v
		if v.Type == "title" {
			title = v.Text()
		}
	}
	get := func(names ...string) string {
		for _, name := range names {
			if v, ok := props[name]; ok {
				if s := v.Text(); s != "" {
					return s
				}
			}
		}
		return ""
	}
	s := TrailSummary{
		ID:         p.ID,
		Title:      title,
		Region:     get("region", "location", "state"),
		Difficulty: get("difficulty", "grade"),
		Distance:   get("distance"),
		Duration:   get("duration", "days"),
		Summary:    get("summary", "description"),
		Cover:      p.Cover.url(),
	}
	s.Slug = Slugify(get("slug"))
	if s.Slug == "" {
		s.Slug = Slugify(title)
	}
	if s.Slug == "" {
		s.Slug = strings.ReplaceAll(p.ID, "-", "")
	}
	return s
}

type rawBlock map[string]any

type blocksResponse struct {
	Results    []rawBlock `json:"results"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor"`
}

// PageBlocks returns the top-level blocks of a page, following pagination.
func (n *NotionClient) PageBlocks(ctx context.Context, pageID string) ([]Block, error) {
	var out []Block
	cursor := ""
	for {
		req := n.http.R().
			SetContext(ctx).
			SetQueryParam("page_size", cast.ToString(notionPageSize))
		if cursor != "" {
			req.SetQueryParam("start_cursor", cursor)
		}
		var res blocksResponse
		resp, err := req.SetResult(&res).Get("/v1/blocks/" + pageID + "/children")
		if err != nil {
			return nil, fmt.Errorf("notion blocks: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("notion blocks: status %d: %s", resp.StatusCode(), resp.String())
		}
		for _, b := range res.Results {
			out = append(out, normalizeBlock(b))
		}
		if !res.HasMore || res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

// normalizeBlock keeps the text, link and checkbox of a block; everything
// else Notion returns is dropped.
func normalizeBlock(raw rawBlock) Block {
	typ := cast.ToString(raw["type"])
	b := Block{Type: typ}
	body, _ := raw[typ].(map[string]any)
	if body == nil {
		return b
	}
	if parts, ok := body["rich_text"].([]any); ok {
		var sb strings.Builder
		for _, p := range parts {
			if m, ok := p.(map[string]any); ok {
				sb.WriteString(cast.ToString(m["plain_text"]))
			}
		}
		b.Text = sb.String()
	}
	if u := cast.ToString(body["url"]); u != "" {
		b.URL = u
	}
	for _, kind := range []string{"external", "file"} {
		if m, ok := body[kind].(map[string]any); ok && b.URL == "" {
			b.URL = cast.ToString(m["url"])
		}
	}
	if b.Text == "" {
		if caption, ok := body["caption"].([]any); ok {
			for _, p := range caption {
				if m, ok := p.(map[string]any); ok {
					b.Text += cast.ToString(m["plain_text"])
				}
			}
		}
	}
	if v, ok := body["checked"].(bool); ok {
		b.Checked = &v
	}
	return b
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses runs of non-alphanumerics into "-".
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
