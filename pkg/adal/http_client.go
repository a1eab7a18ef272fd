// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/azure/adtoken/pkg/httputil"
	"github.com/sethvargo/go-retry"
)

const (
	headerCorrelationID       = "client-request-id"
	headerReturnCorrelationID = "return-client-request-id"

	deviceAuthHeaderName  = "x-ms-PKeyAuth"
	deviceAuthHeaderValue = "1.0"
	wwwAuthenticateHeader = "WWW-Authenticate"
	pKeyAuthScheme        = "PKeyAuth"

	// retryDelay is the fixed wait before the single transient-failure retry.
	retryDelay = time.Second
)

// DeviceAuthResponder answers a PKeyAuth device challenge with the value for
// the Authorization header of the resubmitted request. None is wired up by
// default; the challenge structure is preserved as an extension point.
type DeviceAuthResponder interface {
	RespondToChallenge(ctx context.Context, challengeData map[string]string) (string, error)
}

// wireErrorResponse is the OAuth error payload shape.
type wireErrorResponse struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description"`
	ErrorCodes       []json.Number     `json:"error_codes"`
	Claims           string            `json:"claims"`
	SubError         string            `json:"suberror"`
	AdditionalFields map[string]string `json:"-"`
}

// wireClient executes one logical exchange against the service: identifying
// headers, correlation-id verification, a single bounded retry on transient
// failures, and challenge detection.
type wireClient struct {
	requestURI string
	transport  httputil.Client
	cs         *callState

	// resilient is set once a transport-level failure or 5xx was observed.
	// The acquisition handler consults it to decide whether serving a stale
	// extended-lifetime token is appropriate.
	resilient bool

	deviceAuthResponder DeviceAuthResponder
	extraHeaders        map[string]string
}

func newWireClient(requestURI string, transport httputil.Client, cs *callState) *wireClient {
	if transport == nil {
		transport = httputil.NewClient()
	}

	return &wireClient{
		requestURI: requestURI,
		transport:  transport,
		cs:         cs,
	}
}

// getResponse executes the exchange and unmarshals the JSON response body
// into target. params being nil selects a GET; otherwise the parameters are
// form-encoded into a POST body.
func (c *wireClient) getResponse(ctx context.Context, params url.Values, target any) error {
	return c.exchange(ctx, params, target, true)
}

func (c *wireClient) exchange(ctx context.Context, params url.Values, target any, respondToDeviceAuth bool) error {
	request := c.buildRequest(params)

	var response *httputil.ResponseMessage
	attempt := func(ctx context.Context) error {
		resp, err := c.transport.Send(ctx, request)
		if err != nil {
			// No response at all: transient until proven otherwise.
			c.resilient = true
			c.cs.logf("network failure, will retry once")
			c.cs.logPii("network failure: %v", err)
			return retry.RetryableError(&TransportError{innerErr: err})
		}

		response = resp
		if resp.Status >= 500 && resp.Status < 600 {
			c.resilient = true
			c.cs.logf("http status %d, will retry once", resp.Status)
			return retry.RetryableError(&TransportError{Status: resp.Status})
		}

		return nil
	}

	if err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(retryDelay)), attempt); err != nil {
		if response == nil {
			// The request never produced a response.
			return err
		}
	}

	if response.Status >= 400 {
		if c.isDeviceAuthChallenge(response, respondToDeviceAuth) {
			return c.handleDeviceAuthChallenge(ctx, response, params, target)
		}

		return c.errorFromResponse(response)
	}

	if target != nil {
		if err := json.Unmarshal(response.Body, target); err != nil {
			return fmt.Errorf("deserializing response: %w", err)
		}
	}

	c.verifyCorrelationID(response)
	return nil
}

func (c *wireClient) buildRequest(params url.Values) *httputil.RequestMessage {
	headers := map[string]string{
		headerCorrelationID:       c.cs.correlationID,
		headerReturnCorrelationID: "true",
		deviceAuthHeaderName:      deviceAuthHeaderValue,
	}

	for k, v := range clientIdentityHeaders() {
		headers[k] = v
	}

	for k, v := range c.extraHeaders {
		headers[k] = v
	}

	request := &httputil.RequestMessage{
		Url:     c.requestURI,
		Method:  http.MethodGet,
		Headers: headers,
	}

	if params != nil {
		request.Method = http.MethodPost
		request.Body = params.Encode()
		headers["Content-Type"] = "application/x-www-form-urlencoded"
	}

	return request
}

// errorFromResponse classifies a non-2xx response. An OAuth error body maps to
// a ServiceError (or its claims-challenge subtype on an interaction_required
// 400); a 5xx without a recognizable body stays a transport failure.
func (c *wireClient) errorFromResponse(response *httputil.ResponseMessage) error {
	var payload wireErrorResponse
	parseErr := json.Unmarshal(response.Body, &payload)

	if parseErr != nil || payload.Error == "" {
		if response.Status >= 500 {
			return &TransportError{Status: response.Status}
		}

		return &ServiceError{
			Code:              errCodeUnknown,
			Description:       strings.TrimSpace(string(response.Body)),
			ServiceErrorCodes: []string{strconv.Itoa(response.Status)},
		}
	}

	codes := make([]string, 0, len(payload.ErrorCodes))
	for _, code := range payload.ErrorCodes {
		codes = append(codes, code.String())
	}
	if len(codes) == 0 {
		codes = []string{strconv.Itoa(response.Status)}
	}

	serviceErr := ServiceError{
		Code:              payload.Error,
		Description:       payload.ErrorDescription,
		ServiceErrorCodes: codes,
	}

	if response.Status == http.StatusBadRequest && payload.Error == errCodeInteractionRequired {
		return &ClaimsChallengeError{
			ServiceError: serviceErr,
			Claims:       payload.Claims,
		}
	}

	return &serviceErr
}

func (c *wireClient) isDeviceAuthChallenge(response *httputil.ResponseMessage, respondToDeviceAuth bool) bool {
	if !respondToDeviceAuth || response.Status != http.StatusUnauthorized {
		return false
	}

	header := response.Header(wwwAuthenticateHeader)
	return strings.HasPrefix(strings.ToLower(header), strings.ToLower(pKeyAuthScheme))
}

// handleDeviceAuthChallenge parses the PKeyAuth challenge and resubmits the
// request to the challenge's SubmitUrl with the responder's Authorization
// value. Without a responder the challenge is surfaced as unsupported.
func (c *wireClient) handleDeviceAuthChallenge(
	ctx context.Context,
	response *httputil.ResponseMessage,
	params url.Values,
	target any,
) error {
	challengeData := parseChallengeData(response)
	if _, ok := challengeData["SubmitUrl"]; !ok {
		challengeData["SubmitUrl"] = c.requestURI
	}

	if c.deviceAuthResponder == nil {
		return fmt.Errorf("pkeyauth challenge received: %w", ErrDeviceAuthNotSupported)
	}

	authorization, err := c.deviceAuthResponder.RespondToChallenge(ctx, challengeData)
	if err != nil {
		return fmt.Errorf("responding to device auth challenge: %w", err)
	}

	resubmit := newWireClient(challengeData["SubmitUrl"], c.transport, c.cs)
	resubmit.extraHeaders = map[string]string{"Authorization": authorization}
	return resubmit.exchange(ctx, params, target, false)
}

func parseChallengeData(response *httputil.ResponseMessage) map[string]string {
	data := map[string]string{}
	for _, challenge := range ParseWWWAuthenticateHeader(response.Header(wwwAuthenticateHeader)) {
		if challenge.Scheme == pKeyAuthScheme {
			for k, v := range challenge.AuthParams {
				data[k] = v
			}
			break
		}
	}

	return data
}

// verifyCorrelationID warns when the service echoed a different correlation id
// than the one sent. Never fatal.
func (c *wireClient) verifyCorrelationID(response *httputil.ResponseMessage) {
	returned := strings.TrimSpace(response.Header(headerCorrelationID))
	if returned != "" && returned != c.cs.correlationID {
		c.cs.logf("returned correlation id '%s' does not match the sent correlation id '%s'",
			returned, c.cs.correlationID)
	}
}
