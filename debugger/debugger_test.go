package debugger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio/debugger"
)

func TestStartAndCompleteRequest(t *testing.T) {
	rec := debugger.New()

	rec.StartRequest("call-1", "https://provider.example/v1/predictions", "POST",
		map[string]string{"Content-Type": "application/json"},
		map[string]any{"input": map[string]any{"prompt": "a red fox"}},
	)

	got, ok := rec.Get("call-1")
	require.True(t, ok)
	assert.Equal(t, "https://provider.example/v1/predictions", got.URL)
	assert.Equal(t, "POST", got.Method)
	assert.Nil(t, got.Timing.End)
	assert.Nil(t, got.Timing.DurationMs)

	rec.CompleteRequest("call-1", 201, map[string]string{"Content-Type": "application/json"},
		map[string]any{"id": "pred-1"}, "")

	got, ok = rec.Get("call-1")
	require.True(t, ok)
	require.NotNil(t, got.ResponseStatus)
	assert.Equal(t, 201, *got.ResponseStatus)
	require.NotNil(t, got.Timing.End)
	require.NotNil(t, got.Timing.DurationMs)
	assert.Equal(t, got.Timing.End.Sub(got.Timing.Start).Milliseconds(), *got.Timing.DurationMs)
}

func TestCompleteUnknownIDSynthesizesRecord(t *testing.T) {
	rec := debugger.New()

	rec.CompleteRequest("ghost", 502, nil, nil, "bad gateway")

	got, ok := rec.Get("ghost")
	require.True(t, ok)
	assert.Equal(t, "unknown", got.URL)
	assert.Equal(t, "unknown", got.Method)
	assert.Equal(t, "bad gateway", got.Error)
	require.NotNil(t, got.Timing.DurationMs)
}

func TestDoubleCompleteKeepsTimingLastPayloadWins(t *testing.T) {
	rec := debugger.New()
	rec.StartRequest("call-1", "https://provider.example", "GET", nil, nil)

	rec.CompleteRequest("call-1", 200, nil, "first", "")
	first, _ := rec.Get("call-1")

	time.Sleep(5 * time.Millisecond)
	rec.CompleteRequest("call-1", 500, nil, "second", "late error")
	second, _ := rec.Get("call-1")

	// end/duration set exactly once
	assert.Equal(t, first.Timing.End, second.Timing.End)
	assert.Equal(t, first.Timing.DurationMs, second.Timing.DurationMs)
	assert.Equal(t, second.Timing.End.Sub(second.Timing.Start).Milliseconds(), *second.Timing.DurationMs)
	// payload fields last-writer-wins
	assert.Equal(t, 500, *second.ResponseStatus)
	assert.Equal(t, "second", second.ResponseBody)
	assert.Equal(t, "late error", second.Error)
}

func TestSnapshotIsDefensiveCopy(t *testing.T) {
	rec := debugger.New()
	rec.StartRequest("call-1", "https://provider.example", "GET", nil, nil)

	snap := rec.Snapshot()
	require.Len(t, snap, 1)
	delete(snap, "call-1")

	_, ok := rec.Get("call-1")
	assert.True(t, ok)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	rec := debugger.New()

	var calls []string
	unsub := rec.Subscribe(func(id string, r debugger.Record) {
		calls = append(calls, id)
	})

	rec.StartRequest("a", "https://provider.example", "GET", nil, nil)
	rec.CompleteRequest("a", 200, nil, nil, "")
	assert.Equal(t, []string{"a", "a"}, calls)

	unsub()
	rec.StartRequest("b", "https://provider.example", "GET", nil, nil)
	assert.Equal(t, []string{"a", "a"}, calls)
}

func TestClearRemovesAllWithoutNotify(t *testing.T) {
	rec := debugger.New()
	rec.StartRequest("a", "https://provider.example", "GET", nil, nil)

	notified := 0
	rec.Subscribe(func(string, debugger.Record) { notified++ })

	rec.Clear()
	assert.Empty(t, rec.Snapshot())
	assert.Zero(t, notified)
}
