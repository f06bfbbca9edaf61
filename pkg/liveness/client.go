// Package liveness is the client-side presence driver: it keeps a channel
// subscription alive with periodic heartbeats, emits throttled typing beats,
// guarantees a leave signal on teardown, and polls the roster endpoints.
package liveness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RosterUser is one named entry in a channel roster.
type RosterUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Roster is the online roster for a channel.
type Roster struct {
	Users     []RosterUser `json:"users"`
	Anonymous int          `json:"anonymous"`
}

// API is the server surface the driver talks to. AnonKey arguments are only
// honored for unauthenticated clients; the leave call carries an explicit
// user id override because it may fire after the session context is gone.
type API interface {
	Heartbeat(ctx context.Context, channelID, anonKey string) error
	Leave(ctx context.Context, channelID, anonKey, userID string) error
	TypingBeat(ctx context.Context, channelID string, typing bool) error
	ListOnline(ctx context.Context, channelID string) (*Roster, error)
	ListTyping(ctx context.Context, channelID string) ([]RosterUser, error)
}

// Client is an HTTP implementation of API against the presence service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client. token may be empty for anonymous use.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Heartbeat(ctx context.Context, channelID, anonKey string) error {
	body := map[string]string{}
	if anonKey != "" {
		body["anon_key"] = anonKey
	}
	return c.do(ctx, http.MethodPost, c.presencePath(channelID, "heartbeat"), body, nil)
}

func (c *Client) Leave(ctx context.Context, channelID, anonKey, userID string) error {
	body := map[string]string{}
	if anonKey != "" {
		body["anon_key"] = anonKey
	}
	if userID != "" {
		body["user_id"] = userID
	}
	return c.do(ctx, http.MethodPost, c.presencePath(channelID, "leave"), body, nil)
}

func (c *Client) TypingBeat(ctx context.Context, channelID string, typing bool) error {
	return c.do(ctx, http.MethodPost, c.presencePath(channelID, "typing"), map[string]bool{"typing": typing}, nil)
}

func (c *Client) ListOnline(ctx context.Context, channelID string) (*Roster, error) {
	var resp struct {
		Data Roster `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.presencePath(channelID, "online"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) ListTyping(ctx context.Context, channelID string) ([]RosterUser, error) {
	var resp struct {
		Data struct {
			Users []RosterUser `json:"users"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.presencePath(channelID, "typing"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Users, nil
}

func (c *Client) presencePath(channelID, op string) string {
	return "/channels/" + url.PathEscape(channelID) + "/presence/" + op
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
