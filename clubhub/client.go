// Package clubhub is the HTTP client for the ClubHub member management
// service. It provides the account directory read and the presence
// submission write used by the check-in engine.
package clubhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clubops/rollcall/checkin"
	"github.com/clubops/rollcall/errors"
	"github.com/clubops/rollcall/roster"
)

const (
	// DefaultTimeout bounds each ClubHub request
	DefaultTimeout = 30 * time.Second

	// DefaultPageSize is the directory page size
	DefaultPageSize = 200

	// timestampLayout is the wall-clock format ClubHub expects for
	// presence events. Local time, no zone suffix.
	timestampLayout = "2006-01-02T15:04:05"
)

// Client is a ClubHub API client
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
}

// Config holds ClubHub client configuration
type Config struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	PageSize int
}

// NewClient creates a new ClubHub API client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.PageSize == 0 {
		config.PageSize = DefaultPageSize
	}

	return &Client{
		baseURL:  config.BaseURL,
		token:    config.Token,
		pageSize: config.PageSize,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// memberRecord mirrors the ClubHub member payload
type memberRecord struct {
	ID            string `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	StatusMessage string `json:"statusMessage"`
	UserType      int    `json:"userType"`
	Trial         bool   `json:"trial"`
	ContractTypes []int  `json:"contractTypes"`
}

// membersPage is one page of the directory listing
type membersPage struct {
	Members []memberRecord `json:"members"`
	Total   int            `json:"total"`
}

// ListAccounts fetches the full member directory, paging until exhausted
func (c *Client) ListAccounts(ctx context.Context) ([]roster.Account, error) {
	var accounts []roster.Account

	for offset := 0; ; offset += c.pageSize {
		url := fmt.Sprintf("%s/api/v1/members?limit=%d&offset=%d", c.baseURL, c.pageSize, offset)
		var page membersPage
		if err := c.get(ctx, url, &page); err != nil {
			return nil, errors.Wrapf(err, "failed to list members at offset %d", offset)
		}

		for _, m := range page.Members {
			accounts = append(accounts, roster.Account{
				ID:            m.ID,
				FirstName:     m.FirstName,
				LastName:      m.LastName,
				StatusMessage: m.StatusMessage,
				ContractTypes: m.ContractTypes,
				UserType:      m.UserType,
				Trial:         m.Trial,
			})
		}

		if len(page.Members) < c.pageSize {
			break
		}
	}

	return accounts, nil
}

// usageRequest is the presence event payload
type usageRequest struct {
	Date   string    `json:"date"`
	Door   usageRef  `json:"door"`
	Club   usageRef  `json:"club"`
	Manual bool      `json:"manual"`
}

type usageRef struct {
	ID int `json:"id"`
}

// Submit records one presence event for an account
func (c *Client) Submit(ctx context.Context, accountID string, at time.Time, visit checkin.Visit) error {
	payload := usageRequest{
		Date:   at.Format(timestampLayout),
		Door:   usageRef{ID: visit.DoorID},
		Club:   usageRef{ID: visit.ClubID},
		Manual: visit.Manual,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal usage payload")
	}

	url := fmt.Sprintf("%s/api/v1/members/%s/usages", c.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create usage request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "usage request failed for member %s", accountID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("usage request for member %s returned %d: %s",
			accountID, resp.StatusCode, readErrorBody(resp.Body))
	}

	return nil
}

// get performs an authenticated GET and decodes the JSON response
func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("request returned %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// readErrorBody reads a bounded slice of an error response body
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(data) == 0 {
		return "(no body)"
	}
	return string(data)
}
