package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachstudy/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStage is a configurable stage for runner tests
type fakeStage struct {
	id       string
	requires []string
	produces []string
	execErr  error
	valErr   error
	ran      bool
}

func (s *fakeStage) ID() string                { return s.id }
func (s *fakeStage) Name() string              { return s.id }
func (s *fakeStage) RequiredInputs() []string  { return s.requires }
func (s *fakeStage) ProducedOutputs() []string { return s.produces }
func (s *fakeStage) Validate(*State) error     { return s.valErr }
func (s *fakeStage) Execute(ctx context.Context, state *State) error {
	s.ran = true
	return s.execErr
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (b *recordingBroadcaster) Publish(e ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func newTestState(t *testing.T) *State {
	t.Helper()
	cfg := &config.Config{}
	state := NewState("run-1", t.TempDir(), cfg)
	return state
}

func TestRunnerExecutesStagesInOrder(t *testing.T) {
	first := &fakeStage{id: "first", produces: []string{"a"}}
	second := &fakeStage{id: "second", requires: []string{"a"}, produces: []string{"b"}}

	manifest := NewManifest("run-1")
	broadcaster := &recordingBroadcaster{}
	runner := NewRunner([]Stage{first, second}, manifest, nil, broadcaster, time.Minute, testLogger())

	state := newTestState(t)
	require.NoError(t, runner.Run(context.Background(), state))

	assert.True(t, first.ran)
	assert.True(t, second.ran)
	assert.True(t, state.Has("a"))
	assert.True(t, state.Has("b"))

	assert.Equal(t, StatusCompleted, manifest.Status)
	require.Len(t, manifest.Stages, 2)
	assert.Equal(t, "first", manifest.Stages[0].StageID)
	assert.Equal(t, StatusCompleted, manifest.Stages[0].Status)
	assert.Contains(t, manifest.Produced, "a")

	// running + completed per stage
	assert.Len(t, broadcaster.events, 4)
	assert.Equal(t, StatusRunning, broadcaster.events[0].Status)
	assert.Equal(t, StatusCompleted, broadcaster.events[1].Status)
}

func TestRunnerStopsOnMissingInput(t *testing.T) {
	stage := &fakeStage{id: "needy", requires: []string{"missing"}}
	manifest := NewManifest("run-2")
	runner := NewRunner([]Stage{stage}, manifest, nil, nil, 0, testLogger())

	err := runner.Run(context.Background(), newTestState(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.False(t, stage.ran)
	assert.Equal(t, StatusFailed, manifest.Status)
}

func TestRunnerStopsOnStageFailure(t *testing.T) {
	first := &fakeStage{id: "first", produces: []string{"a"}, execErr: assert.AnError}
	second := &fakeStage{id: "second", requires: []string{"a"}}

	manifest := NewManifest("run-3")
	runner := NewRunner([]Stage{first, second}, manifest, nil, nil, time.Minute, testLogger())

	state := newTestState(t)
	err := runner.Run(context.Background(), state)
	require.Error(t, err)

	assert.False(t, second.ran, "later stages do not run after a failure")
	assert.False(t, state.Has("a"), "failed stage produces nothing")
	require.Len(t, manifest.Stages, 1)
	assert.Equal(t, StatusFailed, manifest.Stages[0].Status)
	assert.NotEmpty(t, manifest.Error)
}

func TestRunnerValidationFailure(t *testing.T) {
	stage := &fakeStage{id: "bad", valErr: assert.AnError}
	manifest := NewManifest("run-4")
	runner := NewRunner([]Stage{stage}, manifest, nil, nil, 0, testLogger())

	err := runner.Run(context.Background(), newTestState(t))
	require.Error(t, err)
	assert.False(t, stage.ran)
}

func TestManifestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	manifest := NewManifest("run-5")
	manifest.RecordStage(StageExecution{
		StageID: "load_dataset", StageName: "Load", Status: StatusCompleted,
		Outputs: []string{DataDataset},
	})
	manifest.Finish(nil)
	require.NoError(t, manifest.Save(dir))

	loaded, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "run-5", loaded.RunID)
	assert.Equal(t, StatusCompleted, loaded.Status)
	require.Len(t, loaded.Stages, 1)
	assert.Contains(t, loaded.Produced, DataDataset)
}

func TestStateProducedKeys(t *testing.T) {
	state := newTestState(t)
	assert.False(t, state.Has(DataDataset))

	state.MarkProduced(DataDataset, DataMarketData)
	assert.True(t, state.Has(DataDataset))
	assert.True(t, state.Has(DataMarketData))
	assert.ElementsMatch(t, []string{DataDataset, DataMarketData}, state.Produced())
}
