// Package papers fetches daily-paper metadata from the HuggingFace API.
package papers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"research-assistant-be/pkg/ranking"
)

const defaultBaseURL = "https://huggingface.co/api/daily_papers"

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// The API sometimes nests paper fields under a "paper" key and sometimes
// inlines them; upvotes live on the outer item.
type dailyPaperItem struct {
	Paper   *dailyPaper `json:"paper"`
	Upvotes int         `json:"upvotes"`
	dailyPaper
}

type dailyPaper struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Authors     []authorName `json:"authors"`
	PublishedAt string       `json:"publishedAt"`
}

type authorName struct {
	Name string `json:"name"`
}

// FetchByDate returns normalized paper metadata for one date (YYYY-MM-DD).
// Items without an id are dropped.
func (c *Client) FetchByDate(ctx context.Context, date string) ([]ranking.Paper, error) {
	endpoint := fmt.Sprintf("%s?date=%s", c.baseURL, url.QueryEscape(date))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daily papers request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daily papers error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var items []dailyPaperItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result := make([]ranking.Paper, 0, len(items))
	for _, item := range items {
		p := item.dailyPaper
		if item.Paper != nil {
			p = *item.Paper
		}
		if p.ID == "" {
			continue
		}
		authors := make([]string, 0, len(p.Authors))
		for _, a := range p.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		result = append(result, ranking.Paper{
			ID:          p.ID,
			Title:       p.Title,
			Summary:     p.Summary,
			Authors:     authors,
			PublishedAt: p.PublishedAt,
			Upvotes:     item.Upvotes,
		})
	}
	return result, nil
}
