// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package mockhttp

import (
	"context"
	"fmt"
	"strings"

	"github.com/azure/adtoken/pkg/httputil"
)

type MockHttpClient struct {
	expressions []*HttpExpression
}

type HttpExpression struct {
	http        *MockHttpClient
	predicateFn RequestPredicate
	response    httputil.ResponseMessage
	responseFn  RespondFn
	error       error
}

type RequestPredicate func(request *httputil.RequestMessage) bool
type RespondFn func(request httputil.RequestMessage) (*httputil.ResponseMessage, error)

func NewMockHttpClient() *MockHttpClient {
	return &MockHttpClient{
		expressions: []*HttpExpression{},
	}
}

func (c *MockHttpClient) Send(ctx context.Context, req *httputil.RequestMessage) (*httputil.ResponseMessage, error) {
	var match *HttpExpression

	for _, expr := range c.expressions {
		if expr.predicateFn(req) {
			match = expr
			break
		}
	}

	if match == nil {
		panic(fmt.Sprintf("No mock found for request: '%s %s'", req.Method, req.Url))
	}

	// If the response function has been set, return the value
	if match.responseFn != nil {
		return match.responseFn(*req)
	}

	return &match.response, match.error
}

func (c *MockHttpClient) When(predicate RequestPredicate) *HttpExpression {
	expr := HttpExpression{
		http:        c,
		predicateFn: predicate,
	}

	c.expressions = append(c.expressions, &expr)
	return &expr
}

func (c *MockHttpClient) WhenUrlContains(fragment string) *HttpExpression {
	return c.When(func(request *httputil.RequestMessage) bool {
		return strings.Contains(request.Url, fragment)
	})
}

func (c *MockHttpClient) Reset() {
	c.expressions = []*HttpExpression{}
}

func (e *HttpExpression) Respond(response httputil.ResponseMessage) *MockHttpClient {
	e.response = response
	return e.http
}

func (e *HttpExpression) RespondFn(responseFn RespondFn) *MockHttpClient {
	e.responseFn = responseFn
	return e.http
}

func (e *HttpExpression) SetError(err error) *MockHttpClient {
	e.error = err
	return e.http
}
