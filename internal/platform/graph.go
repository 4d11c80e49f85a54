package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GraphClient talks to a Meta-Graph-style REST API: comment replies are
// POSTed under the post, direct messages under the recipient.
type GraphClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

type graphResponse struct {
	ID    string `json:"id,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func NewGraphClient(baseURL, accessToken string) *GraphClient {
	return &GraphClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GraphClient) SendComment(ctx context.Context, postID, text string) error {
	return c.post(ctx, fmt.Sprintf("/%s/comments", postID), map[string]string{
		"message": text,
	})
}

func (c *GraphClient) SendDirectMessage(ctx context.Context, userID, text string) error {
	return c.post(ctx, fmt.Sprintf("/%s/messages", userID), map[string]string{
		"message": text,
	})
}

func (c *GraphClient) post(ctx context.Context, path string, params map[string]string) error {
	body, _ := json.Marshal(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var result graphResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("platform returned invalid response: %w", err)
	}

	if result.Error != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, result.Error.Message)
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, result.Error.Message)
		}
		return fmt.Errorf("platform API error: %s", result.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("platform API status %d", resp.StatusCode)
	}

	return nil
}
