// Package metaculus is a read-only client for the Metaculus posts API,
// used to pull already-resolved binary questions as assessment cases.
package metaculus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://www.metaculus.com/api"
	siteURL        = "https://www.metaculus.com"

	// listPageSize is the page size requested from the list endpoint.
	listPageSize = 100
)

// Question type literals as returned by the API.
const (
	QuestionTypeBinary = "binary"
)

// Resolution literals as returned by the API for resolved binary questions.
const (
	ResolutionYes       = "yes"
	ResolutionNo        = "no"
	ResolutionAmbiguous = "ambiguous"
	ResolutionAnnulled  = "annulled"
)

// Client fetches posts from the Metaculus API.
type Client interface {
	GetPost(ctx context.Context, postID int) (*Post, error)
	ListTournamentPosts(ctx context.Context, tournament string, limit int) ([]Post, error)
}

// Post is a Metaculus post holding at most one question.
type Post struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Slug     string    `json:"slug"`
	Question *Question `json:"question"`
}

// Question carries the resolution-relevant fields of a post's question.
type Question struct {
	ID                 int        `json:"id"`
	Type               string     `json:"type"`
	Description        string     `json:"description"`
	ResolutionCriteria string     `json:"resolution_criteria"`
	FinePrint          string     `json:"fine_print"`
	Resolution         string     `json:"resolution"`
	ScheduledCloseTime *time.Time `json:"scheduled_close_time"`
	ActualCloseTime    *time.Time `json:"actual_close_time"`
}

// PageURL returns the public question page for the post.
func (p Post) PageURL() string {
	if p.Slug == "" {
		return fmt.Sprintf("%s/questions/%d/", siteURL, p.ID)
	}
	return fmt.Sprintf("%s/questions/%d/%s/", siteURL, p.ID, p.Slug)
}

// APIError is a non-2xx response from the API. Callers can branch on the
// status code to decide how to classify the failure.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metaculus: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Metaculus API client. The API key is optional; public
// posts are readable without one, authenticated requests get higher rate
// limits.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetPost(ctx context.Context, postID int) (*Post, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/posts/%d/", c.baseURL, postID))
	if err != nil {
		return nil, err
	}

	var post Post
	if err := json.Unmarshal(body, &post); err != nil {
		return nil, eris.Wrap(err, "metaculus: unmarshal post")
	}
	return &post, nil
}

// listResponse is the envelope of the paginated list endpoint.
type listResponse struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []Post `json:"results"`
}

func (c *httpClient) ListTournamentPosts(ctx context.Context, tournament string, limit int) ([]Post, error) {
	var all []Post
	offset := 0

	for {
		pageSize := listPageSize
		if limit > 0 && limit-len(all) < pageSize {
			pageSize = limit - len(all)
		}

		q := url.Values{}
		q.Set("tournaments", tournament)
		q.Set("statuses", "resolved")
		q.Set("forecast_type", QuestionTypeBinary)
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))

		body, err := c.get(ctx, c.baseURL+"/posts/?"+q.Encode())
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, eris.Wrap(err, "metaculus: unmarshal post list")
		}

		all = append(all, page.Results...)
		offset += len(page.Results)

		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if page.Next == "" || len(page.Results) == 0 {
			return all, nil
		}
	}
}

func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "metaculus: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "metaculus: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "metaculus: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
