package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// apiClient talks to a running ytfetch server
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and decodes a JSON response into out when it is not nil.
// Non-2xx responses become errors carrying the server's message.
func (c *apiClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *apiClient) addDownload(rawURL, format string) (*domain.Download, error) {
	var download domain.Download
	payload := map[string]string{"url": rawURL, "format": format}
	if err := c.do(http.MethodPost, "/api/v1/downloads", payload, &download); err != nil {
		return nil, err
	}
	return &download, nil
}

func (c *apiClient) getDownload(id string) (*domain.Download, error) {
	var download domain.Download
	if err := c.do(http.MethodGet, "/api/v1/downloads/"+url.PathEscape(id), nil, &download); err != nil {
		return nil, err
	}
	return &download, nil
}

func (c *apiClient) listDownloads(status string, limit int) ([]*domain.Download, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}

	path := "/api/v1/downloads"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var downloads []*domain.Download
	if err := c.do(http.MethodGet, path, nil, &downloads); err != nil {
		return nil, err
	}
	return downloads, nil
}

func (c *apiClient) stats() (*domain.DownloadStats, error) {
	var stats domain.DownloadStats
	if err := c.do(http.MethodGet, "/api/v1/downloads/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *apiClient) cancel(id string) error {
	return c.do(http.MethodPost, "/api/v1/downloads/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (c *apiClient) retry(id string) (*domain.Download, error) {
	var download domain.Download
	if err := c.do(http.MethodPost, "/api/v1/downloads/"+url.PathEscape(id)+"/retry", nil, &download); err != nil {
		return nil, err
	}
	return &download, nil
}

func (c *apiClient) remove(id string) error {
	return c.do(http.MethodDelete, "/api/v1/downloads/"+url.PathEscape(id), nil, nil)
}

func (c *apiClient) downloadLog(id string) ([]string, error) {
	var result struct {
		Lines []string `json:"lines"`
	}
	if err := c.do(http.MethodGet, "/api/v1/downloads/"+url.PathEscape(id)+"/log", nil, &result); err != nil {
		return nil, err
	}
	return result.Lines, nil
}

// follow streams the status events of a download until the server closes
// the stream. It returns the last event received.
func (c *apiClient) follow(id string, onEvent func(domain.StatusEvent)) (domain.StatusEvent, error) {
	var last domain.StatusEvent

	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/downloads/" + url.PathEscape(id) + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return last, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return last, nil
			}
			return last, fmt.Errorf("event stream interrupted: %w", err)
		}

		var ev domain.StatusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return last, fmt.Errorf("failed to decode event: %w", err)
		}
		last = ev
		onEvent(ev)
	}
}
