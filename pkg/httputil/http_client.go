// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RequestMessage is a single logical HTTP request. Body, when non-empty, is
// sent verbatim; callers set Content-Type through Headers.
type RequestMessage struct {
	Url     string
	Method  string
	Headers map[string]string
	Body    string
}

// ResponseMessage is the downloaded response. Headers are flattened to their
// first value.
type ResponseMessage struct {
	Headers map[string]string
	Status  int
	Body    []byte
}

// Header returns the named response header, matching case-insensitively.
func (r *ResponseMessage) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return ""
}

type Client interface {
	Send(ctx context.Context, req *RequestMessage) (*ResponseMessage, error)
}

// defaultRequestTimeout bounds every exchange; callers needing a tighter bound
// wrap the context instead.
const defaultRequestTimeout = 30 * time.Second

type httpClient struct {
	client *http.Client
}

func NewClient() Client {
	return &httpClient{
		client: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c *httpClient) Send(ctx context.Context, req *RequestMessage) (*ResponseMessage, error) {
	request, err := http.NewRequestWithContext(ctx, req.Method, req.Url, strings.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	request.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		request.Header.Set(k, v)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("executing http request: %w", err)
	}
	defer response.Body.Close()

	responseBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	headers := make(map[string]string, len(response.Header))
	for k := range response.Header {
		headers[k] = response.Header.Get(k)
	}

	return &ResponseMessage{
		Status:  response.StatusCode,
		Headers: headers,
		Body:    responseBytes,
	}, nil
}
