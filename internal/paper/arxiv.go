package paper

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client queries the arXiv Atom API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://export.arxiv.org/api/query"
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type Result struct {
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract"`
	Authors     string     `json:"authors"`
	DOI         string     `json:"doi,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	SourceURL   string     `json:"source_url"`
	Categories  []string   `json:"categories,omitempty"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	DOI       string `xml:"doi"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 10
	}

	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv: status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv: decode feed: %w", err)
	}

	results := make([]Result, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		r := Result{
			Title:     strings.TrimSpace(e.Title),
			Abstract:  strings.TrimSpace(e.Summary),
			DOI:       strings.TrimSpace(e.DOI),
			SourceURL: strings.TrimSpace(e.ID),
		}
		names := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			if n := strings.TrimSpace(a.Name); n != "" {
				names = append(names, n)
			}
		}
		r.Authors = strings.Join(names, ", ")
		for _, cat := range e.Categories {
			if cat.Term != "" {
				r.Categories = append(r.Categories, cat.Term)
			}
		}
		if ts, err := time.Parse(time.RFC3339, e.Published); err == nil {
			r.PublishedAt = &ts
		}
		results = append(results, r)
	}
	return results, nil
}
