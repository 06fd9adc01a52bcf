package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio/cmd/api/services"
	"media-studio/debugger"
	"media-studio/eventbus"
	"media-studio/events"
	"media-studio/monitoring"
	"media-studio/predictions"
)

// capturingPublisher records every published event in place of Kafka.
type capturingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []eventbus.Event
	err    error
}

func (p *capturingPublisher) Publish(ctx context.Context, topic string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func (p *capturingPublisher) Close() {}

func (p *capturingPublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]eventbus.Event(nil), p.events...)
}

type fixture struct {
	svc    *services.GenerationService
	store  *monitoring.Store
	rec    *debugger.Recorder
	server *httptest.Server
	calls  int64
}

// newFixture wires a service against a fake provider, with the archive and
// the event bus disabled.
func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()
	return newFixtureWithPublisher(t, handler, nil)
}

func newFixtureWithPublisher(t *testing.T, handler http.Handler, publisher eventbus.Publisher) *fixture {
	t.Helper()
	fx := &fixture{}
	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fx.calls, 1)
		handler.ServeHTTP(w, r)
	})
	fx.server = httptest.NewServer(counting)
	t.Cleanup(fx.server.Close)

	fx.rec = debugger.New()
	fx.store = monitoring.NewStore()
	client := predictions.NewClient(predictions.ClientOptions{
		BaseURL: fx.server.URL,
		Token:   "test-token",
	}, fx.rec)
	orch := predictions.NewOrchestrator(client, fx.store, predictions.Config{
		ModelVersion: "version-1",
		VideoModel:   "acme/video-model",
		MaxAttempts:  30,
		PollDelay:    0,
	})
	fx.svc = services.NewGenerationService(orch, fx.store, nil, publisher, "generation.events")
	return fx
}

func imageProvider(media []byte) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"pred-1","status":"starting"}`)
	})
	mux.HandleFunc("GET /v1/predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":"pred-1","status":"succeeded","output":["%s/files/out"]}`, "http://"+r.Host)
	})
	mux.HandleFunc("GET /files/out", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(media)
	})
	return mux
}

func TestSubmitImageSuccess(t *testing.T) {
	fx := newFixture(t, imageProvider([]byte{0x89, 'P', 'N', 'G', 1, 2, 3}))

	out := fx.svc.Submit(context.Background(), services.SubmitInput{
		Prompt:    "a red fox in the snow",
		MediaType: monitoring.MediaImage,
	})

	require.Nil(t, out.Err)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, "pred-1", out.PredictionID)
	assert.Equal(t, monitoring.MediaImage, out.MediaType)
	assert.True(t, strings.HasPrefix(out.MediaURI, "data:image/png;base64,"))
	assert.Equal(t, 7, out.SizeBytes)

	metrics, ok := fx.store.Request(out.RequestID)
	require.True(t, ok)
	assert.Equal(t, monitoring.StatusSuccess, metrics.Status)
	require.NotNil(t, metrics.DurationMs)
}

func TestSubmitVideoUsesDirectPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/inference/acme/video-model", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("fake-video-bytes"))
	})
	fx := newFixture(t, mux)

	out := fx.svc.Submit(context.Background(), services.SubmitInput{
		Prompt:    "a fox running through snow",
		MediaType: monitoring.MediaVideo,
	})

	require.Nil(t, out.Err)
	assert.Equal(t, monitoring.MediaVideo, out.MediaType)
	assert.True(t, strings.HasPrefix(out.MediaURI, "data:video/mp4;base64,"))
	assert.EqualValues(t, 1, atomic.LoadInt64(&fx.calls))

	// the direct path records its single call under the bare request ID
	_, ok := fx.rec.Get(out.RequestID)
	assert.True(t, ok)
}

func TestSubmitProviderFailureMarksRequestError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail":"provider exploded"}`)
	})
	fx := newFixture(t, mux)

	out := fx.svc.Submit(context.Background(), services.SubmitInput{
		Prompt:    "a red fox in the snow",
		MediaType: monitoring.MediaImage,
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, predictions.KindProvider, out.Err.Kind)
	assert.Equal(t, http.StatusInternalServerError, out.Err.Status)

	metrics, ok := fx.store.Request(out.RequestID)
	require.True(t, ok)
	assert.Equal(t, monitoring.StatusError, metrics.Status)
	assert.NotNil(t, metrics.Error)
}

func TestSubmitRejectsBlankPromptWithoutCallingProvider(t *testing.T) {
	fx := newFixture(t, http.NewServeMux())

	out := fx.svc.Submit(context.Background(), services.SubmitInput{
		Prompt:    "   ",
		MediaType: monitoring.MediaImage,
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, predictions.KindValidation, out.Err.Kind)
	assert.EqualValues(t, 0, atomic.LoadInt64(&fx.calls))

	metrics, ok := fx.store.Request(out.RequestID)
	require.True(t, ok)
	assert.Equal(t, monitoring.StatusError, metrics.Status)
}

func TestSubmitPublishesOneCompletedEvent(t *testing.T) {
	publisher := &capturingPublisher{}
	fx := newFixtureWithPublisher(t, imageProvider([]byte{1, 2, 3}), publisher)

	out := fx.svc.Submit(context.Background(), services.SubmitInput{
		Prompt:    "a red fox in the snow",
		MediaType: monitoring.MediaImage,
	})
	require.Nil(t, out.Err)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, []string{"generation.events"}, publisher.topics)
	assert.Equal(t, out.RequestID, published[0].ID)

	decoded, err := events.DeserializeEvent(events.GenerationCompleted, published[0].Payload)
	require.NoError(t, err)
	evt, ok := decoded.(*events.GenerationCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, events.GenerationCompleted, evt.Type)
	assert.Equal(t, out.RequestID, evt.RequestID)
	assert.Equal(t, "pred-1", evt.PredictionID)
	assert.Equal(t, "a red fox in the snow", evt.Prompt)
	assert.EqualValues(t, 3, evt.MediaSizeBytes)
}

func TestSubmitPublishesOneFailedEvent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/predictions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail":"provider exploded"}`)
	})
	publisher := &capturingPublisher{}
	fx := newFixtureWithPublisher(t, mux, publisher)

	out := fx.svc.Submit(context.Background(), services.SubmitInput{
		Prompt:    "a red fox in the snow",
		MediaType: monitoring.MediaImage,
	})
	require.NotNil(t, out.Err)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, out.RequestID, published[0].ID)

	decoded, err := events.DeserializeEvent(events.GenerationFailed, published[0].Payload)
	require.NoError(t, err)
	evt, ok := decoded.(*events.GenerationFailedEvent)
	require.True(t, ok)
	assert.Equal(t, string(predictions.KindProvider), evt.ErrorKind)
	assert.Equal(t, out.Err.Message, evt.ErrorMessage)
}

func TestSubmitIgnoresPublisherFailure(t *testing.T) {
	publisher := &capturingPublisher{err: errors.New("brokers unreachable")}
	fx := newFixtureWithPublisher(t, imageProvider([]byte{1, 2, 3}), publisher)

	out := fx.svc.Submit(context.Background(), services.SubmitInput{
		Prompt:    "a red fox in the snow",
		MediaType: monitoring.MediaImage,
	})

	// the publish error is logged and swallowed
	require.Nil(t, out.Err)
	assert.True(t, strings.HasPrefix(out.MediaURI, "data:image/png;base64,"))
	require.Len(t, publisher.published(), 1)

	metrics, ok := fx.store.Request(out.RequestID)
	require.True(t, ok)
	assert.Equal(t, monitoring.StatusSuccess, metrics.Status)
}

func TestSubmitMintsDistinctRequestIDs(t *testing.T) {
	fx := newFixture(t, imageProvider([]byte{1, 2, 3}))

	first := fx.svc.Submit(context.Background(), services.SubmitInput{Prompt: "one", MediaType: monitoring.MediaImage})
	second := fx.svc.Submit(context.Background(), services.SubmitInput{Prompt: "two", MediaType: monitoring.MediaImage})

	require.Nil(t, first.Err)
	require.Nil(t, second.Err)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Len(t, fx.store.Requests(), 2)
}
