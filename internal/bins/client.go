package bins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

// Client reads and manages the bin inventory exposed by the backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// List fetches all bins. Failures degrade to an empty slice plus an
// error for logging; the map simply renders without markers.
func (c *Client) List(ctx context.Context) ([]models.Bin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/bins/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger.Error("bin list fetch failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("bin list status %d", resp.StatusCode)
		c.logger.Error("bin list fetch failed", "error", err)
		return nil, err
	}

	var out struct {
		Bins []models.Bin `json:"bins"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Bins, nil
}

// Active filters a bin list down to the markers shown to users.
func Active(list []models.Bin) []models.Bin {
	out := make([]models.Bin, 0, len(list))
	for _, b := range list {
		if b.Status == models.BinActive {
			out = append(out, b)
		}
	}
	return out
}

func (c *Client) Get(ctx context.Context, id string) (models.Bin, error) {
	var bin models.Bin
	err := c.do(ctx, http.MethodGet, id, nil, &bin)
	return bin, err
}

func (c *Client) Update(ctx context.Context, bin models.Bin) (models.Bin, error) {
	body, err := json.Marshal(bin)
	if err != nil {
		return models.Bin{}, err
	}
	var updated models.Bin
	if err := c.do(ctx, http.MethodPut, bin.ID, bytes.NewReader(body), &updated); err != nil {
		return models.Bin{}, err
	}
	return updated, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, id string, body *bytes.Reader, out any) error {
	u := c.BaseURL + "/api/bins/" + url.PathEscape(id)
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u, body)
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bin %s %s status %d", method, id, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
