// Copyright 2025 Diiwaan
// SPDX-License-Identifier: Apache-2.0

// Package remote is the HTTP client for the Diiwaan service. The service is
// the system of record; this package only speaks its REST contract and does
// not implement any of its business rules.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the Diiwaan REST API. The bearer credential is supplied
// per request via Credentials, never stored on the client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	logger  *slog.Logger
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ListCustomers returns all customers visible to the credential's owner.
func (c *Client) ListCustomers(ctx context.Context, creds Credentials) ([]Customer, error) {
	var customers []Customer
	if err := c.do(ctx, creds, http.MethodGet, "/api/customers", nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// CreateCustomer creates a customer and returns the server row with its
// assigned id.
func (c *Client) CreateCustomer(ctx context.Context, creds Credentials, req CustomerUpsert) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, creds, http.MethodPost, "/api/customers", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomer updates an existing customer by server id.
func (c *Client) UpdateCustomer(ctx context.Context, creds Credentials, id int64, req CustomerUpsert) (*Customer, error) {
	var customer Customer
	path := fmt.Sprintf("/api/customers/%d", id)
	if err := c.do(ctx, creds, http.MethodPut, path, req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// DeleteCustomer deletes a customer by server id.
func (c *Client) DeleteCustomer(ctx context.Context, creds Credentials, id int64) error {
	return c.do(ctx, creds, http.MethodDelete, fmt.Sprintf("/api/customers/%d", id), nil, nil)
}

// CreateOilSale creates an oil sale. The request must never carry a negative
// id in any id-typed field; temp-id resolution happens before this call.
func (c *Client) CreateOilSale(ctx context.Context, creds Credentials, req SaleCreateRequest) (*OilSale, error) {
	var sale OilSale
	if err := c.do(ctx, creds, http.MethodPost, "/api/oil-sales", req, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

// CreateWakaalad creates an agency allocation against an oil lot.
func (c *Client) CreateWakaalad(ctx context.Context, creds Credentials, req WakaaladCreateRequest) (*Wakaalad, error) {
	var w Wakaalad
	if err := c.do(ctx, creds, http.MethodPost, "/api/wakaalads", req, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// FetchIncomeStatement returns the server-computed summary for an inclusive
// date range, optionally filtered to one truck/asset tag.
func (c *Client) FetchIncomeStatement(ctx context.Context, creds Credentials, start, end, assetTag string) (*IncomeStatement, error) {
	q := url.Values{}
	q.Set("start", start)
	q.Set("end", end)
	if assetTag != "" {
		q.Set("asset", assetTag)
	}
	var st IncomeStatement
	if err := c.do(ctx, creds, http.MethodGet, "/api/reports/income-statement?"+q.Encode(), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// FetchProfile returns the signed-in user's profile.
func (c *Client) FetchProfile(ctx context.Context, creds Credentials) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, creds, http.MethodGet, "/api/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
