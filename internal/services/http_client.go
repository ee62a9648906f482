package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// RequestOpts captures inputs for upstream API calls.
type RequestOpts struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    any
	Headers map[string]string
}

// Response bundles the HTTP response metadata.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func doRequest(ctx context.Context, client *http.Client, service, baseURL string, opts RequestOpts) (*Response, error) {
	if opts.Method == "" {
		return nil, errors.New("request method is required")
	}

	targetURL, err := joinURL(baseURL, opts.Path, opts.Query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, targetURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if client == nil {
		client = httpClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Service: service, Err: fmt.Errorf("read response: %w", err)}
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   respBody,
		Header: resp.Header.Clone(),
	}, nil
}

func joinURL(baseURL, path string, query map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	if path = strings.TrimLeft(path, "/"); path != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + path
	}

	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			if v != "" {
				values.Set(k, v)
			}
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

// upstreamMessage pulls a human-readable message out of a provider or backend error body.
func upstreamMessage(body []byte) string {
	var payload struct {
		ErrorMessages []string        `json:"error_messages"`
		StatusMessage string          `json:"status_message"`
		Message       string          `json:"message"`
		Reason        string          `json:"reason"`
		Error         json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	switch {
	case len(payload.ErrorMessages) > 0:
		return strings.Join(payload.ErrorMessages, "; ")
	case payload.StatusMessage != "":
		return payload.StatusMessage
	case payload.Message != "":
		return payload.Message
	case payload.Reason != "":
		return payload.Reason
	}

	var errText string
	if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &errText) == nil {
		return errText
	}
	return ""
}

// unwrapData returns the "data" member of an envelope, or the body itself when there is none.
func unwrapData(body []byte) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return envelope.Data
	}
	return json.RawMessage(body)
}
