package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running agent runtime over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type messageRequest struct {
	Text     string `json:"text"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// SendMessage posts text to the agent and returns its decoded JSON reply.
func (c *Client) SendMessage(ctx context.Context, agentID, text string) (any, error) {
	body, err := json.Marshal(messageRequest{Text: text, UserID: "user", UserName: "User"})
	if err != nil {
		return nil, fmt.Errorf("marshaling message: %w", err)
	}

	endpoint := c.baseURL + "/" + url.PathEscape(agentID) + "/message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to communicate with AI agent: %s", resp.Status)
	}

	var reply any
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("agent reply is not JSON: %w", err)
	}
	return reply, nil
}
