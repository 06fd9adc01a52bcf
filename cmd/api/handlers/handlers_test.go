package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio/cmd/api/router"
	"media-studio/cmd/api/services"
	"media-studio/debugger"
	"media-studio/monitoring"
	"media-studio/predictions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestAPI wires the full route tree against a fake provider, without the
// archive or the event bus.
func newTestAPI(t *testing.T) (*gin.Engine, *monitoring.Store, *debugger.Recorder) {
	t.Helper()
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
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("GET /v1/account", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"username":"studio"}`)
	})
	provider := httptest.NewServer(mux)
	t.Cleanup(provider.Close)

	rec := debugger.New()
	store := monitoring.NewStore()
	client := predictions.NewClient(predictions.ClientOptions{
		BaseURL: provider.URL,
		Token:   "test-token",
	}, rec)
	orch := predictions.NewOrchestrator(client, store, predictions.Config{
		ModelVersion: "version-1",
		VideoModel:   "acme/video-model",
		MaxAttempts:  30,
		PollDelay:    0,
	})
	svc := services.NewGenerationService(orch, store, nil, nil, "generation.events")

	r := router.New(router.Deps{
		Service:  svc,
		Client:   client,
		Recorder: rec,
		Store:    store,
	})
	return r, store, rec
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestGenerateImageEndpoint(t *testing.T) {
	r, store, _ := newTestAPI(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/generations/image", `{"prompt":"a red fox"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "image", body["media_type"])
	assert.Equal(t, "pred-1", body["prediction_id"])
	mediaURI, _ := body["media_uri"].(string)
	assert.True(t, strings.HasPrefix(mediaURI, "data:image/png;base64,"))

	requestID, _ := body["request_id"].(string)
	require.NotEmpty(t, requestID)
	debug, _ := body["debug"].(map[string]any)
	assert.Contains(t, debug, requestID+"-create")
	assert.Contains(t, debug, requestID+"-poll-1")
	assert.Contains(t, debug, requestID+"-media")

	metrics, ok := store.Request(requestID)
	require.True(t, ok)
	assert.Equal(t, monitoring.StatusSuccess, metrics.Status)
}

func TestGenerateImageEndpointRejectsMissingPrompt(t *testing.T) {
	r, _, _ := newTestAPI(t)

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/generations/image", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(predictions.KindValidation), body["kind"])
}

func TestDebugRequestEndpoints(t *testing.T) {
	r, _, _ := newTestAPI(t)

	_, generated := doJSON(t, r, http.MethodPost, "/api/v1/generations/image", `{"prompt":"a red fox"}`)
	requestID, _ := generated["request_id"].(string)
	require.NotEmpty(t, requestID)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/debug/requests", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["count"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/debug/requests/"+requestID+"-create", "")
	require.Equal(t, http.StatusOK, w.Code)
	record, _ := body["record"].(map[string]any)
	assert.Equal(t, "POST", record["method"])
	headers, _ := record["request_headers"].(map[string]any)
	assert.Equal(t, "Bearer ***", headers["Authorization"])

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/debug/requests/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/debug/requests", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, body = doJSON(t, r, http.MethodGet, "/api/v1/debug/requests", "")
	assert.EqualValues(t, 0, body["count"])
}

func TestMonitoringEndpoints(t *testing.T) {
	r, _, _ := newTestAPI(t)

	doJSON(t, r, http.MethodPost, "/api/v1/generations/image", `{"prompt":"a red fox"}`)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/monitoring/requests", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, body = doJSON(t, r, http.MethodGet, "/api/v1/monitoring/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	count, _ := body["count"].(float64)
	assert.Greater(t, count, float64(0))

	w, _ = doJSON(t, r, http.MethodDelete, "/api/v1/monitoring/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, body = doJSON(t, r, http.MethodGet, "/api/v1/monitoring/logs", "")
	assert.EqualValues(t, 0, body["count"])

	// clearing logs never touches request metrics
	_, body = doJSON(t, r, http.MethodGet, "/api/v1/monitoring/requests", "")
	assert.EqualValues(t, 1, body["count"])
}

func TestProviderStatusEndpoint(t *testing.T) {
	r, _, _ := newTestAPI(t)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/provider/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, http.StatusOK, body["status"])
}

func TestHistoryWithoutArchive(t *testing.T) {
	r, _, _ := newTestAPI(t)

	w, _ := doJSON(t, r, http.MethodGet, "/api/v1/generations/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// sseEvents connects to an SSE endpoint and feeds each event block into the
// returned channel. The channel closes when the stream ends.
func sseEvents(t *testing.T, ctx context.Context, url string) <-chan string {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		var block strings.Builder
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if block.Len() > 0 {
					out <- block.String()
					block.Reset()
				}
				continue
			}
			block.WriteString(line)
			block.WriteString("\n")
		}
	}()
	return out
}

func nextSSEEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case evt, ok := <-events:
		require.True(t, ok, "stream ended before the expected event")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE event")
		return ""
	}
}

func waitSSEClosed(t *testing.T, events <-chan string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not terminate after disconnect")
		}
	}
}

func TestMonitoringStreamEmitsOnMutation(t *testing.T) {
	r, store, _ := newTestAPI(t)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := sseEvents(t, ctx, server.URL+"/api/v1/monitoring/stream")

	first := nextSSEEvent(t, events)
	assert.Contains(t, first, "event:snapshot")

	store.Log(monitoring.LevelInfo, "live stream entry", nil)
	second := nextSSEEvent(t, events)
	assert.Contains(t, second, "live stream entry")

	cancel()
	waitSSEClosed(t, events)

	// the handler has returned and dropped its subscription; further
	// mutations complete without a consumer
	store.Log(monitoring.LevelInfo, "after disconnect", nil)
}

func TestDebugStreamEmitsOnCapture(t *testing.T) {
	r, _, rec := newTestAPI(t)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := sseEvents(t, ctx, server.URL+"/api/v1/debug/stream")

	first := nextSSEEvent(t, events)
	assert.Contains(t, first, "event:snapshot")

	rec.StartRequest("live-call-1", "http://provider/v1/predictions", "POST", map[string]string{}, nil)
	second := nextSSEEvent(t, events)
	assert.Contains(t, second, "live-call-1")

	cancel()
	waitSSEClosed(t, events)

	rec.CompleteRequest("live-call-1", http.StatusOK, map[string]string{}, nil, "")
}

func TestHealthEndpoint(t *testing.T) {
	r, _, _ := newTestAPI(t)

	w, body := doJSON(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}
