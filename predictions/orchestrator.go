// Package predictions drives one media-generation request against the
// hosted inference provider: create a prediction, poll it to a terminal
// status, fetch the finished artifact and hand it back as a base64 data URI.
package predictions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"media-studio/monitoring"
)

// Config bounds the poll loop and names the models. The defaults are 30
// attempts at 1 s intervals, a 30 s worst-case ceiling per generation.
type Config struct {
	ModelVersion string
	VideoModel   string
	MaxAttempts  int
	PollDelay    time.Duration
}

// Result is a finished generation: the artifact as a data URI plus enough
// identifiers to cross-reference the debug panel.
type Result struct {
	RequestID    string `json:"request_id"`
	PredictionID string `json:"prediction_id,omitempty"`
	MediaURI     string `json:"media_uri"`
	ContentType  string `json:"content_type"`
	SizeBytes    int    `json:"size_bytes"`
}

// Orchestrator owns the create/poll/fetch protocol. It never panics across
// its boundary: every failure mode comes back as a tagged *Error.
type Orchestrator struct {
	client *Client
	store  *monitoring.Store
	cfg    Config
}

func NewOrchestrator(client *Client, store *monitoring.Store, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 30
	}
	if cfg.PollDelay < 0 {
		cfg.PollDelay = time.Second
	}
	return &Orchestrator{client: client, store: store, cfg: cfg}
}

// Generate runs the asynchronous protocol: create the prediction, poll until
// a terminal status, fetch the output. Used for images.
func (o *Orchestrator) Generate(ctx context.Context, requestID, prompt string) (*Result, *Error) {
	if err := o.precheck(prompt); err != nil {
		return nil, err
	}

	res, callErr := o.client.CreatePrediction(ctx, requestID+"-create", o.cfg.ModelVersion, prompt)
	if callErr != nil {
		return nil, callErr
	}
	if !res.OK() {
		return nil, newProviderError(fmt.Sprintf("provider returned status %d creating prediction", res.Status), res.Status, res.Decoded())
	}
	pred, decErr := decodePrediction(res)
	if decErr != nil {
		return nil, decErr
	}
	if pred.ID == "" {
		return nil, newProviderError("no prediction ID in response", res.Status, res.Decoded())
	}
	o.store.Log(monitoring.LevelInfo, "Prediction created with ID: "+pred.ID, map[string]any{"prediction_id": pred.ID})

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		pollRes, pollErr := o.client.GetPrediction(ctx, fmt.Sprintf("%s-poll-%d", requestID, attempt), pred.ID)
		if pollErr != nil {
			return nil, pollErr
		}
		if !pollRes.OK() {
			return nil, newProviderError(fmt.Sprintf("provider returned status %d while polling", pollRes.Status), pollRes.Status, pollRes.Decoded())
		}
		current, decErr := decodePrediction(pollRes)
		if decErr != nil {
			return nil, decErr
		}

		switch current.Status {
		case StatusSucceeded:
			if len(current.Output) == 0 {
				return nil, newProviderError("no output in prediction result", pollRes.Status, pollRes.Decoded())
			}
			outputURL, ok := current.OutputURL()
			if !ok {
				return nil, newProviderError("no media URL in prediction output", pollRes.Status, pollRes.Decoded())
			}
			return o.fetchMedia(ctx, requestID, pred.ID, outputURL)
		case StatusFailed:
			detail := current.Error
			if detail == nil {
				detail = pollRes.Decoded()
			}
			return nil, &Error{Kind: KindPredictionFailed, Message: "prediction failed", Detail: detail}
		case StatusCanceled:
			return nil, &Error{Kind: KindPredictionCanceled, Message: "prediction was canceled", Detail: pollRes.Decoded()}
		default:
			// starting, processing, or any interim status the provider adds later
			if attempt < o.cfg.MaxAttempts {
				if err := sleepCtx(ctx, o.cfg.PollDelay); err != nil {
					return nil, newTransportError("generation aborted", err)
				}
			}
		}
	}

	return nil, &Error{
		Kind:    KindTimeout,
		Message: "prediction timed out",
		Detail:  map[string]any{"attempts": o.cfg.MaxAttempts, "prediction_id": pred.ID},
	}
}

// GenerateDirect runs the synchronous protocol: one inference call that
// returns the finished media. Used for videos.
func (o *Orchestrator) GenerateDirect(ctx context.Context, requestID, prompt string) (*Result, *Error) {
	if err := o.precheck(prompt); err != nil {
		return nil, err
	}

	res, callErr := o.client.InvokeModel(ctx, requestID, o.cfg.VideoModel, prompt)
	if callErr != nil {
		return nil, callErr
	}
	if len(res.Body) == 0 {
		return nil, newError(KindEmptyPayload, "received empty video data")
	}

	contentType := effectiveContentType(res.Headers, "video/mp4")
	return &Result{
		RequestID:   requestID,
		MediaURI:    EncodeDataURI(res.Body, res.Headers["Content-Type"], "video/mp4"),
		ContentType: contentType,
		SizeBytes:   len(res.Body),
	}, nil
}

func (o *Orchestrator) precheck(prompt string) *Error {
	if strings.TrimSpace(prompt) == "" {
		return newError(KindValidation, "prompt is required")
	}
	if !o.client.hasToken() {
		return newError(KindConfiguration, "missing inference API token")
	}
	return nil
}

func (o *Orchestrator) fetchMedia(ctx context.Context, requestID, predictionID, outputURL string) (*Result, *Error) {
	res, callErr := o.client.FetchOutput(ctx, requestID+"-media", outputURL)
	if callErr != nil {
		return nil, callErr
	}
	if !res.OK() {
		return nil, newProviderError(fmt.Sprintf("provider returned status %d fetching media", res.Status), res.Status, res.Decoded())
	}
	if len(res.Body) == 0 {
		return nil, newError(KindEmptyPayload, "received empty media payload")
	}

	contentType := effectiveContentType(res.Headers, "image/png")
	return &Result{
		RequestID:    requestID,
		PredictionID: predictionID,
		MediaURI:     EncodeDataURI(res.Body, res.Headers["Content-Type"], "image/png"),
		ContentType:  contentType,
		SizeBytes:    len(res.Body),
	}, nil
}

func decodePrediction(res *CallResult) (*Prediction, *Error) {
	var pred Prediction
	if err := json.Unmarshal(res.Body, &pred); err != nil {
		return nil, newProviderError("invalid provider response body", res.Status, string(res.Body))
	}
	return &pred, nil
}

func effectiveContentType(headers map[string]string, fallback string) string {
	if ct := headers["Content-Type"]; ct != "" {
		return ct
	}
	return fallback
}

// sleepCtx waits for the poll delay without ignoring cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
