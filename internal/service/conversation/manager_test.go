package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/agent"
	model "github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
)

func TestManagerLifecycle(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := NewManager(&fakeSigner{url: "wss://vendor/s?sig=1"}, dialer, nil, false)
	ctx := context.Background()

	handle, err := mgr.Create(ctx, agent.Agent{ID: "agent_1", Name: "Ana"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID)
	assert.Equal(t, "Ana", handle.Controller.AgentName())

	got, err := mgr.Get(handle.ID)
	require.NoError(t, err)
	assert.Same(t, handle, got)

	require.NoError(t, handle.Controller.Start(ctx, handle.Agent.ID))
	require.NoError(t, mgr.Release(ctx, handle.ID))
	assert.Equal(t, model.StatusIdle, handle.Controller.Status())
	assert.Equal(t, 1, dialer.session.closed)

	_, err = mgr.Get(handle.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, mgr.Release(ctx, handle.ID), ErrConversationNotFound)
}

func TestManagerCreateRequiresAgent(t *testing.T) {
	mgr := NewManager(nil, nil, nil, false)
	_, err := mgr.Create(context.Background(), agent.Agent{}, nil)
	assert.ErrorIs(t, err, ErrAgentRequired)
}

func TestManagerUsesReportedMicrophone(t *testing.T) {
	mgr := NewManager(&fakeSigner{url: "wss://vendor/s?sig=1"}, &fakeDialer{}, nil, false)
	ctx := context.Background()

	handle, err := mgr.Create(ctx, agent.Agent{ID: "agent_1"}, nil)
	require.NoError(t, err)

	handle.ReportMicrophone(false)
	assert.ErrorIs(t, handle.Controller.Start(ctx, "agent_1"), ErrMicrophoneDenied)
	assert.Equal(t, model.StatusIdle, handle.Controller.Status())

	handle.ReportMicrophone(true)
	require.NoError(t, handle.Controller.Start(ctx, "agent_1"))
	assert.Equal(t, model.StatusConnected, handle.Controller.Status())
}
