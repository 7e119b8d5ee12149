package content

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
)

// GearItem is one row of the gear recommendations sheet.
type GearItem struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
	Image       string `json:"image,omitempty"`
	Price       string `json:"price,omitempty"`
}

// GearCategory groups items in sheet order.
type GearCategory struct {
	Category string     `json:"category"`
	Items    []GearItem `json:"items"`
}

// SheetSource downloads the published CSV of the gear sheet.
type SheetSource struct {
	http   *resty.Client
	csvURL string
}

// NewSheetSource creates a source for a "publish to web" CSV link.
func NewSheetSource(client *resty.Client, csvURL string) *SheetSource {
	return &SheetSource{http: client, csvURL: csvURL}
}

// FetchGear downloads and groups the sheet.
func (s *SheetSource) FetchGear(ctx context.Context) ([]GearCategory, error) {
	if s.csvURL == "" {
		return nil, errors.New("gear sheet URL not configured")
	}
	resp, err := s.http.R().SetContext(ctx).Get(s.csvURL)
	if err != nil {
		return nil, fmt.Errorf("fetch gear sheet: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch gear sheet: status %d", resp.StatusCode())
	}
	items, err := ParseGearCSV(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, err
	}
	return GroupGear(items), nil
}

// ParseGearCSV maps rows by header name, case-insensitively. Rows without a
// name are dropped; an empty category becomes "Other".
func ParseGearCSV(r io.Reader) ([]GearItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read gear header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, errors.New("gear sheet has no name column")
	}

	var items []GearItem
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read gear row: %w", err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		item := GearItem{
			Category:    field("category"),
			Name:        field("name"),
			Brand:       field("brand"),
			Description: field("description"),
			Link:        field("link"),
			Image:       field("image"),
			Price:       field("price"),
		}
		if item.Name == "" {
			continue
		}
		if item.Category == "" {
			item.Category = "Other"
		}
		items = append(items, item)
	}
	return items, nil
}

// GroupGear groups items by category, keeping first-seen order.
func GroupGear(items []GearItem) []GearCategory {
	index := map[string]int{}
	out := []GearCategory{}
	for _, it := range items {
		i, ok := index[it.Category]
		if !ok {
			i = len(out)
			index[it.Category] = i
			out = append(out, GearCategory{Category: it.Category})
		}
		out[i].Items = append(out[i].Items, it)
	}
	return out
}
