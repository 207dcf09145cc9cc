// Package confluence is the page-fetching boundary of the pipeline. It
// covers exactly what episode generation needs: authenticated single-page
// and one-level-children reads of the Confluence REST content API.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Config holds connection settings, loadable from the environment.
type Config struct {
	BaseURL  string        `env:"CONVOCAST_CONFLUENCE_URL"`
	Username string        `env:"CONVOCAST_CONFLUENCE_USER"`
	APIToken string        `env:"CONVOCAST_CONFLUENCE_TOKEN"`
	Timeout  time.Duration `env:"CONVOCAST_CONFLUENCE_TIMEOUT" envDefault:"30s"`
}

// Page is a fetched Confluence page: title plus storage-format body.
type Page struct {
	ID    string
	Title string
	Body  string
}

// Client reads pages from a Confluence instance.
type Client struct {
	baseURL  string
	username string
	apiToken string
	http     *http.Client
	log      *log.Logger
}

// New creates a client. BaseURL is required.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("confluence base URL is required")
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		apiToken: cfg.APIToken,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      logger.WithPrefix("confluence"),
	}, nil
}

type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

type childrenResponse struct {
	Results []contentResponse `json:"results"`
}

// FetchPage retrieves one page with its storage-format body.
func (c *Client) FetchPage(ctx context.Context, id string) (*Page, error) {
	var resp contentResponse
	path := fmt.Sprintf("/rest/api/content/%s?expand=body.storage", url.PathEscape(id))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", id, err)
	}
	return &Page{ID: resp.ID, Title: resp.Title, Body: resp.Body.Storage.Value}, nil
}

// FetchTree retrieves a page and, space permitting, its direct child pages,
// capped at maxPages pages in total. The parent always comes first; children
// keep the API's ordering. maxPages <= 1 never touches the children endpoint.
func (c *Client) FetchTree(ctx context.Context, id string, maxPages int) ([]Page, error) {
	page, err := c.FetchPage(ctx, id)
	if err != nil {
		return nil, err
	}
	pages := []Page{*page}
	if maxPages <= 1 {
		return pages, nil
	}

	children, err := c.FetchChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if len(pages) >= maxPages {
			break
		}
		pages = append(pages, child)
	}
	return pages, nil
}

// FetchChildren retrieves a page's direct child pages.
func (c *Client) FetchChildren(ctx context.Context, id string) ([]Page, error) {
	var resp childrenResponse
	path := fmt.Sprintf("/rest/api/content/%s/child/page?expand=body.storage", url.PathEscape(id))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch children of %s: %w", id, err)
	}
	pages := make([]Page, 0, len(resp.Results))
	for _, r := range resp.Results {
		pages = append(pages, Page{ID: r.ID, Title: r.Title, Body: r.Body.Storage.Value})
	}
	return pages, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("GET", "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
