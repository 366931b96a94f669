package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBroadcasterPostsEvents(t *testing.T) {
	var (
		gotPath  string
		gotEvent ProgressEvent
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvent))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(ts.Close)

	b := NewHTTPBroadcaster(ts.URL+"/", testLogger())
	b.Publish(ProgressEvent{
		RunID:   "run-1",
		StageID: "event_study",
		Stage:   "Event study",
		Status:  StatusCompleted,
		At:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "/internal/progress", gotPath)
	assert.Equal(t, "run-1", gotEvent.RunID)
	assert.Equal(t, "event_study", gotEvent.StageID)
	assert.Equal(t, StatusCompleted, gotEvent.Status)
}

func TestHTTPBroadcasterToleratesServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	b := NewHTTPBroadcaster(url, testLogger())
	assert.NotPanics(t, func() {
		b.Publish(ProgressEvent{RunID: "run-1", StageID: "enrich", Status: StatusRunning})
	})
}
