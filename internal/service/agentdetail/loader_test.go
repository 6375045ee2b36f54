package agentdetail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/agent"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/elevenlabs"
)

type scriptedFetcher struct {
	calls   []string
	results []error
	before  func()
}

func (f *scriptedFetcher) GetAgent(_ context.Context, agentID string) (agent.Details, error) {
	f.calls = append(f.calls, agentID)
	if f.before != nil {
		f.before()
	}
	idx := len(f.calls) - 1
	if idx < len(f.results) && f.results[idx] != nil {
		return agent.Details{}, f.results[idx]
	}
	return agent.Details{ID: agentID, Name: "Ana"}, nil
}

func TestLoadSuccess(t *testing.T) {
	var phases []Phase
	loader := New(&scriptedFetcher{}, func(s State) { phases = append(phases, s.Phase) })

	state := loader.Load(context.Background(), "agent_1")
	assert.Equal(t, PhaseLoaded, state.Phase)
	require.NotNil(t, state.Details)
	assert.Equal(t, "Ana", state.Details.Name)
	assert.Equal(t, []Phase{PhaseLoading, PhaseLoaded}, phases)
}

func TestRetryAfterFailureReissuesSameFetch(t *testing.T) {
	fetcher := &scriptedFetcher{results: []error{&elevenlabs.APIError{StatusCode: 500, Message: "upstream unavailable"}}}
	loader := New(fetcher, nil)

	state := loader.Load(context.Background(), "agent_1")
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.Equal(t, "upstream unavailable", state.Error)
	assert.Nil(t, state.Details)

	state = loader.Retry(context.Background())
	assert.Equal(t, PhaseLoaded, state.Phase)
	assert.Empty(t, state.Error)
	assert.Equal(t, []string{"agent_1", "agent_1"}, fetcher.calls)
}

func TestErrorTexts(t *testing.T) {
	fetcher := &scriptedFetcher{results: []error{
		&elevenlabs.APIError{StatusCode: 404},
		errors.New("connection reset"),
		agent.ErrNotFound,
	}}
	loader := New(fetcher, nil)

	assert.Equal(t, msgLoadFailed, loader.Load(context.Background(), "a").Error)
	assert.Equal(t, msgUnexpected, loader.Load(context.Background(), "a").Error)
	assert.Equal(t, msgNotFound, loader.Load(context.Background(), "a").Error)
	assert.Equal(t, msgLoadFailed, loader.Load(context.Background(), "").Error)
}

func TestNoCachingAcrossSelections(t *testing.T) {
	fetcher := &scriptedFetcher{}
	loader := New(fetcher, nil)

	loader.Load(context.Background(), "a")
	loader.Load(context.Background(), "b")
	loader.Load(context.Background(), "a")
	assert.Equal(t, []string{"a", "b", "a"}, fetcher.calls)
}

func TestCloseDropsLateResults(t *testing.T) {
	var loader *Loader
	fetcher := &scriptedFetcher{before: func() { loader.Close() }}
	loader = New(fetcher, nil)

	state := loader.Load(context.Background(), "agent_1")
	assert.Equal(t, PhaseLoading, state.Phase)
	assert.Equal(t, PhaseLoading, loader.Snapshot().Phase)

	loader.Load(context.Background(), "agent_2")
	assert.Len(t, fetcher.calls, 1)
}

func TestEmptyRegistryRecordHasNoDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := elevenlabs.NewClientWithHTTP(elevenlabs.Config{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	state := New(client, nil).Load(context.Background(), "agent_x")
	assert.Equal(t, PhaseLoaded, state.Phase)
	assert.Nil(t, state.Details)
}
