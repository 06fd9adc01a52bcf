package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"media-studio/internal/logger"
	"media-studio/eventbus"
	"media-studio/events"
	"media-studio/models"
	"media-studio/monitoring"
	"media-studio/predictions"
	"media-studio/repositories"
)

// GenerationService is the submit boundary: it owns the request lifecycle in
// the monitoring store, runs the orchestrator, and fans the terminal outcome
// out to the archive and the event bus. It never returns an error or panics
// past this boundary; failures come back inside SubmitOutput.
type GenerationService struct {
	orch      *predictions.Orchestrator
	store     *monitoring.Store
	archive   *repositories.GenerationLogRepository
	publisher eventbus.Publisher
	topic     string
}

// NewGenerationService wires the service. archive and publisher are
// optional; nil disables the corresponding fan-out.
func NewGenerationService(
	orch *predictions.Orchestrator,
	store *monitoring.Store,
	archive *repositories.GenerationLogRepository,
	publisher eventbus.Publisher,
	topic string,
) *GenerationService {
	return &GenerationService{
		orch:      orch,
		store:     store,
		archive:   archive,
		publisher: publisher,
		topic:     topic,
	}
}

type SubmitInput struct {
	Prompt    string
	MediaType monitoring.MediaType
}

// SubmitOutput carries either a finished generation or its tagged error,
// always with the request ID for debug-panel cross-referencing.
type SubmitOutput struct {
	RequestID    string
	PredictionID string
	MediaType    monitoring.MediaType
	MediaURI     string
	ContentType  string
	SizeBytes    int
	Err          *predictions.Error
}

// Submit drives one generation request to a terminal outcome.
func (s *GenerationService) Submit(ctx context.Context, in SubmitInput) SubmitOutput {
	requestID := uuid.NewString()
	s.store.TrackRequest(requestID, in.Prompt, in.MediaType)

	result, genErr := s.run(ctx, requestID, in)

	if genErr != nil {
		s.store.FailRequest(requestID, genErr)
		s.finalize(ctx, requestID, in, nil, genErr)
		return SubmitOutput{RequestID: requestID, MediaType: in.MediaType, Err: genErr}
	}

	s.store.CompleteRequest(requestID, result.MediaURI, map[string]any{
		"content_type":  result.ContentType,
		"size":          result.SizeBytes,
		"prediction_id": result.PredictionID,
	})
	s.finalize(ctx, requestID, in, result, nil)

	mediaType := in.MediaType
	if metrics, ok := s.store.Request(requestID); ok {
		mediaType = metrics.MediaType
	}
	return SubmitOutput{
		RequestID:    requestID,
		PredictionID: result.PredictionID,
		MediaType:    mediaType,
		MediaURI:     result.MediaURI,
		ContentType:  result.ContentType,
		SizeBytes:    result.SizeBytes,
	}
}

// run picks the protocol per media kind and converts a panic into a tagged
// error so nothing escapes the submit boundary.
func (s *GenerationService) run(ctx context.Context, requestID string, in SubmitInput) (result *predictions.Result, genErr *predictions.Error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			genErr = &predictions.Error{
				Kind:    predictions.KindTransport,
				Message: "unexpected failure during generation",
				Detail:  fmt.Sprint(r),
			}
		}
	}()

	if in.MediaType == monitoring.MediaVideo {
		return s.orch.GenerateDirect(ctx, requestID, in.Prompt)
	}
	return s.orch.Generate(ctx, requestID, in.Prompt)
}

// finalize archives the outcome and publishes the event. Both are
// best-effort: a failure here is logged and never changes the caller-facing
// result.
func (s *GenerationService) finalize(ctx context.Context, requestID string, in SubmitInput, result *predictions.Result, genErr *predictions.Error) {
	metrics, ok := s.store.Request(requestID)
	if !ok {
		return
	}

	// the caller's context may already be canceled on error paths
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	s.archiveOutcome(ctx, metrics, result, genErr)
	s.publishOutcome(ctx, metrics, result, genErr)
}

func (s *GenerationService) archiveOutcome(ctx context.Context, metrics monitoring.RequestMetrics, result *predictions.Result, genErr *predictions.Error) {
	if s.archive == nil {
		return
	}

	entry := models.GenerationLog{
		RequestID:   metrics.RequestID,
		Prompt:      metrics.Prompt,
		MediaType:   string(metrics.MediaType),
		Status:      string(metrics.Status),
		RequestedAt: metrics.StartTime,
	}
	if metrics.EndTime != nil {
		entry.CompletedAt = *metrics.EndTime
	}
	if metrics.DurationMs != nil {
		entry.DurationMs = *metrics.DurationMs
	}
	if result != nil {
		entry.PredictionID = result.PredictionID
		entry.ContentType = result.ContentType
		entry.MediaSizeBytes = int64(result.SizeBytes)
	}
	if genErr != nil {
		kind := string(genErr.Kind)
		msg := genErr.Message
		entry.ErrorKind = &kind
		entry.ErrorMessage = &msg
	}

	if _, err := s.archive.Insert(ctx, entry); err != nil {
		logger.ErrorWithFields("failed to archive generation outcome", logger.Fields{
			"request_id": metrics.RequestID,
			"error":      err.Error(),
		})
	}
}

func (s *GenerationService) publishOutcome(ctx context.Context, metrics monitoring.RequestMetrics, result *predictions.Result, genErr *predictions.Error) {
	if s.publisher == nil {
		return
	}

	var durationMs int64
	if metrics.DurationMs != nil {
		durationMs = *metrics.DurationMs
	}
	base := events.BaseEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    "media-studio",
		Version:   "1.0",
	}

	var payload any
	if genErr != nil {
		base.Type = events.GenerationFailed
		payload = events.GenerationFailedEvent{
			BaseEvent:    base,
			RequestID:    metrics.RequestID,
			Prompt:       metrics.Prompt,
			MediaType:    string(metrics.MediaType),
			ErrorKind:    string(genErr.Kind),
			ErrorMessage: genErr.Message,
			DurationMs:   durationMs,
		}
	} else {
		base.Type = events.GenerationCompleted
		payload = events.GenerationCompletedEvent{
			BaseEvent:      base,
			RequestID:      metrics.RequestID,
			PredictionID:   result.PredictionID,
			Prompt:         metrics.Prompt,
			MediaType:      string(metrics.MediaType),
			ContentType:    result.ContentType,
			MediaSizeBytes: int64(result.SizeBytes),
			DurationMs:     durationMs,
		}
	}

	data, eventType, err := events.SerializeEvent(payload)
	if err != nil {
		logger.ErrorWithFields("failed to serialize generation event", logger.Fields{
			"request_id": metrics.RequestID,
			"error":      err.Error(),
		})
		return
	}
	evt := eventbus.Event{ID: metrics.RequestID, Payload: data}
	if err := s.publisher.Publish(ctx, s.topic, evt); err != nil {
		logger.ErrorWithFields("failed to publish generation event", logger.Fields{
			"request_id": metrics.RequestID,
			"event_type": string(eventType),
			"error":      err.Error(),
		})
	}
}
