package predictions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"media-studio/cmd/api/httpclient"
	"media-studio/debugger"
)

// Prediction is the provider's asynchronous job as observed by this service.
// Output stays raw because the provider returns either a single URL string
// or a list of them depending on the model.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  any             `json:"error,omitempty"`
}

// Provider-reported prediction statuses. Succeeded, failed and canceled are
// terminal; anything else keeps the poll loop going.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// OutputURL returns the first media reference in the prediction output.
func (p *Prediction) OutputURL() (string, bool) {
	if len(p.Output) == 0 {
		return "", false
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return single, single != ""
	}
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil {
		if len(list) == 0 || list[0] == "" {
			return "", false
		}
		return list[0], true
	}
	return "", false
}

// CallResult is one provider HTTP exchange: status, flattened headers and the
// raw body. It says nothing about success; callers branch on OK().
type CallResult struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

func (r *CallResult) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decoded returns the body parsed as JSON when possible, the raw text
// otherwise. Used as diagnostic detail and for debug records.
func (r *CallResult) Decoded() any {
	if len(r.Body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err == nil {
		return v
	}
	return string(r.Body)
}

// ClientOptions configures the provider client. BaseURL is the root of a
// Replicate-compatible predictions API. Timeout covers every provider call
// including media fetches; zero keeps the transport default.
type ClientOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the hosted inference provider over raw HTTP and records
// every exchange in the debug recorder under the caller-supplied call ID.
type Client struct {
	base     *httpclient.BaseClient
	token    string
	recorder *debugger.Recorder
}

func NewClient(opts ClientOptions, recorder *debugger.Recorder) *Client {
	hc := httpclient.New(httpclient.Config{Timeout: opts.Timeout})
	return &Client{
		base:     httpclient.NewBaseClientWithClient(hc, opts.BaseURL),
		token:    opts.Token,
		recorder: recorder,
	}
}

func (c *Client) hasToken() bool {
	return c.token != ""
}

// Configured reports whether an API token is present. The connection-test
// endpoint uses it to fail fast instead of probing the provider without a
// credential.
func (c *Client) Configured() bool {
	return c.hasToken()
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.token,
		"Content-Type":  "application/json",
	}
}

// maskAuthorization copies headers with the bearer token hidden. Debug
// records are served over HTTP, so the credential must never land in them.
func maskAuthorization(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if k == "Authorization" && v != "" {
			v = "Bearer ***"
		}
		out[k] = v
	}
	return out
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// CreatePrediction issues the prediction-create call for the given model
// version and prompt.
func (c *Client) CreatePrediction(ctx context.Context, callID, version, prompt string) (*CallResult, *Error) {
	payload := map[string]any{
		"input":   map[string]any{"prompt": prompt},
		"version": version,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, newTransportError("failed to encode create request", err)
	}
	req, err := c.base.NewRequest(ctx, http.MethodPost, "/v1/predictions", nil, bytes.NewReader(buf))
	if err != nil {
		return nil, newTransportError("failed to build create request", err)
	}
	return c.do(callID, req, payload)
}

// GetPrediction reads the current state of a prediction.
func (c *Client) GetPrediction(ctx context.Context, callID, predictionID string) (*CallResult, *Error) {
	req, err := c.base.NewRequest(ctx, http.MethodGet, "/v1/predictions/"+predictionID, nil, nil)
	if err != nil {
		return nil, newTransportError("failed to build poll request", err)
	}
	return c.do(callID, req, nil)
}

// VerifyAuth probes the provider's account endpoint with the configured
// credential. Used by the connection-test endpoint only.
func (c *Client) VerifyAuth(ctx context.Context, callID string) (*CallResult, *Error) {
	req, err := c.base.NewRequest(ctx, http.MethodGet, "/v1/account", nil, nil)
	if err != nil {
		return nil, newTransportError("failed to build account request", err)
	}
	return c.do(callID, req, nil)
}

// do executes an authenticated JSON call and records it. A transport error
// completes the debug record with status 0 and the exception message.
func (c *Client) do(callID string, req *http.Request, debugBody any) (*CallResult, *Error) {
	for k, v := range c.authHeaders() {
		req.Header.Set(k, v)
	}
	c.recorder.StartRequest(callID, req.URL.String(), req.Method, maskAuthorization(c.authHeaders()), debugBody)

	resp, err := c.base.Do(req)
	if err != nil {
		c.recorder.CompleteRequest(callID, 0, map[string]string{}, nil, err.Error())
		return nil, newTransportError("network error while contacting inference provider", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recorder.CompleteRequest(callID, resp.StatusCode, flattenHeaders(resp.Header), nil, err.Error())
		return nil, &Error{Kind: KindTransport, Message: "failed to read provider response", Status: resp.StatusCode, Detail: err.Error()}
	}

	res := &CallResult{Status: resp.StatusCode, Headers: flattenHeaders(resp.Header), Body: body}
	c.recorder.CompleteRequest(callID, res.Status, res.Headers, res.Decoded(), "")
	return res, nil
}

// FetchOutput downloads the finished media artifact. The output URL is
// pre-signed by the provider, so the call is unauthenticated; the binary
// body is kept out of the debug record (headers carry the content type and
// length already).
func (c *Client) FetchOutput(ctx context.Context, callID, outputURL string) (*CallResult, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, newTransportError("failed to build media request", err)
	}
	c.recorder.StartRequest(callID, outputURL, http.MethodGet, map[string]string{}, nil)

	resp, err := c.base.Do(req)
	if err != nil {
		c.recorder.CompleteRequest(callID, 0, map[string]string{}, nil, err.Error())
		return nil, newTransportError("network error while fetching media", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recorder.CompleteRequest(callID, resp.StatusCode, flattenHeaders(resp.Header), nil, err.Error())
		return nil, &Error{Kind: KindTransport, Message: "failed to read media payload", Status: resp.StatusCode, Detail: err.Error()}
	}

	headers := flattenHeaders(resp.Header)
	c.recorder.CompleteRequest(callID, resp.StatusCode, headers, nil, "")
	return &CallResult{Status: resp.StatusCode, Headers: headers, Body: body}, nil
}

// InvokeModel is the alternate synchronous entry point: one call that
// returns the finished media directly, no create/poll cycle. A non-2xx
// response surfaces as a provider error whose detail is parsed JSON-first,
// then plain text; an unparseable body never crashes the call.
func (c *Client) InvokeModel(ctx context.Context, callID, model, prompt string) (*CallResult, *Error) {
	payload := map[string]any{"inputs": prompt}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, newTransportError("failed to encode inference request", err)
	}
	req, err := c.base.NewRequest(ctx, http.MethodPost, "/v1/inference/"+model, nil, bytes.NewReader(buf))
	if err != nil {
		return nil, newTransportError("failed to build inference request", err)
	}
	for k, v := range c.authHeaders() {
		req.Header.Set(k, v)
	}
	c.recorder.StartRequest(callID, req.URL.String(), req.Method, maskAuthorization(c.authHeaders()), payload)

	resp, err := c.base.Do(req)
	if err != nil {
		c.recorder.CompleteRequest(callID, 0, map[string]string{}, nil, err.Error())
		return nil, newTransportError("network error while contacting inference provider", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recorder.CompleteRequest(callID, resp.StatusCode, flattenHeaders(resp.Header), nil, err.Error())
		return nil, &Error{Kind: KindTransport, Message: "failed to read inference response", Status: resp.StatusCode, Detail: err.Error()}
	}

	headers := flattenHeaders(resp.Header)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := parseErrorBody(body)
		c.recorder.CompleteRequest(callID, resp.StatusCode, headers, detail, "")
		return nil, newProviderError(fmt.Sprintf("provider returned status %d", resp.StatusCode), resp.StatusCode, detail)
	}

	c.recorder.CompleteRequest(callID, resp.StatusCode, headers, map[string]any{"size": len(body)}, "")
	return &CallResult{Status: resp.StatusCode, Headers: headers, Body: body}, nil
}

// parseErrorBody tries structured parsing first, then plain text.
func parseErrorBody(body []byte) any {
	if len(body) == 0 {
		return "could not parse error response"
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}
