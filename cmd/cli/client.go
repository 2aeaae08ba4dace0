package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiError is the server's {"error": "..."} body.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string { return e.Message }

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type whoamiResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type listResponse struct {
	Files []struct {
		Name     string `json:"name"`
		Size     string `json:"size"`
		Modified string `json:"modified"`
	} `json:"files"`
	Dirs []struct {
		Name string `json:"name"`
		Size string `json:"size"`
	} `json:"dirs"`
}

// client talks to the homedisk HTTP API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body as JSON and decodes a 200 answer into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
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

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) != nil || e.Error == "" {
			e.Error = fmt.Sprintf("server returned %s", resp.Status)
		}
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) register(ctx context.Context, username, password string) (tokenResponse, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": password}, &out)
	return out, err
}

func (c *client) login(ctx context.Context, username, password string) (tokenResponse, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, &out)
	return out, err
}

func (c *client) whoami(ctx context.Context) (whoamiResponse, error) {
	var out whoamiResponse
	err := c.do(ctx, http.MethodGet, "/api/auth/whoami", nil, &out)
	return out, err
}

func (c *client) list(ctx context.Context, path string) (listResponse, error) {
	var out listResponse
	err := c.do(ctx, http.MethodPost, "/api/fs/list", map[string]string{"path": path}, &out)
	return out, err
}

func (c *client) mkdir(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, "/api/fs/createdir", map[string]string{"path": path}, nil)
}

func (c *client) remove(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, "/api/fs/delete", map[string]string{"path": path}, nil)
}
