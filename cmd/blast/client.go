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

	"gowa-broadcast/internal/model"
	"gowa-broadcast/internal/service"
)

// apiResponse is the server's response envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details string `json:"details"`
	} `json:"error"`
}

// APIError is a non-success envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

type QRCode struct {
	QR     string `json:"qr"`
	Status string `json:"status"`
}

// Client talks to the broadcast HTTP API as the admin user.
type Client struct {
	BaseURL  string
	Username string
	Password string

	accessToken string
	expiresAt   time.Time
	http        *http.Client
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		http:     &http.Client{Timeout: 3 * time.Minute},
	}
}

func (c *Client) EnsureAuth(ctx context.Context) error {
	if c.accessToken == "" || time.Now().Add(time.Minute).After(c.expiresAt) {
		return c.Login(ctx)
	}
	return nil
}

func (c *Client) Login(ctx context.Context) error {
	var data struct {
		AccessToken string    `json:"accessToken"`
		ExpiresAt   time.Time `json:"expiresAt"`
	}
	body := map[string]string{"username": c.Username, "password": c.Password}
	if err := c.call(ctx, http.MethodPost, "/login", body, &data, false); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.accessToken = data.AccessToken
	c.expiresAt = data.ExpiresAt
	return nil
}

func (c *Client) SendBulk(ctx context.Context, req service.BulkRequest) (service.BulkResult, error) {
	var res service.BulkResult
	err := c.call(ctx, http.MethodPost, "/api/messages/send-bulk", req, &res, true)
	return res, err
}

func (c *Client) Job(ctx context.Context, id string) (model.DispatchJob, error) {
	var job model.DispatchJob
	err := c.call(ctx, http.MethodGet, "/api/dispatch/jobs/"+id, nil, &job, true)
	return job, err
}

func (c *Client) CancelJob(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/dispatch/jobs/"+id, nil, nil, true)
}

func (c *Client) QR(ctx context.Context) (QRCode, error) {
	var qr QRCode
	err := c.call(ctx, http.MethodGet, "/api/qrcode", nil, &qr, true)
	return qr, err
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, auth bool) error {
	if auth {
		if err := c.EnsureAuth(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var res apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if !res.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: res.Message}
		if res.Error != nil {
			apiErr.Code, apiErr.Details = res.Error.Code, res.Error.Details
		}
		return apiErr
	}
	if out != nil && len(res.Data) > 0 {
		return json.Unmarshal(res.Data, out)
	}
	return nil
}
