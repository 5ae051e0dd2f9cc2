package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Payload) Payload {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "channel closed")
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Payload{}
	}
}

func TestBus_FanOutPerRun(t *testing.T) {
	bus := NewBus(nil, 4)
	ctx := context.Background()
	runA, runB := uuid.New(), uuid.New()

	a1, cancelA1 := bus.Subscribe(ctx, runA)
	defer cancelA1()
	a2, cancelA2 := bus.Subscribe(ctx, runA)
	defer cancelA2()
	b1, cancelB1 := bus.Subscribe(ctx, runB)
	defer cancelB1()

	require.NoError(t, bus.Publish(ctx, runA, Payload{RunID: runA, Action: "created"}))

	assert.Equal(t, "created", recv(t, a1).Action)
	assert.Equal(t, "created", recv(t, a2).Action)
	select {
	case p := <-b1:
		t.Fatalf("unexpected event for other run: %+v", p)
	default:
	}
}

func TestBus_NoReplay(t *testing.T) {
	bus := NewBus(nil, 4)
	ctx := context.Background()
	run := uuid.New()

	require.NoError(t, bus.Publish(ctx, run, Payload{Action: "before"}))

	ch, cancel := bus.Subscribe(ctx, run)
	defer cancel()
	require.NoError(t, bus.Publish(ctx, run, Payload{Action: "after"}))

	assert.Equal(t, "after", recv(t, ch).Action)
}

func TestBus_FullBufferDoesNotBlock(t *testing.T) {
	bus := NewBus(nil, 1)
	ctx := context.Background()
	run := uuid.New()

	ch, cancel := bus.Subscribe(ctx, run)
	defer cancel()

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ctx, run, Payload{Action: "tick"}))
	}
	assert.Equal(t, "tick", recv(t, ch).Action)
}

func TestBus_CancelAndContext(t *testing.T) {
	bus := NewBus(nil, 1)
	run := uuid.New()

	ch, cancel := bus.Subscribe(context.Background(), run)
	assert.Equal(t, 1, bus.SubscriberCount(run))
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount(run))

	ctx, stop := context.WithCancel(context.Background())
	ch2, _ := bus.Subscribe(ctx, run)
	stop()
	select {
	case _, ok := <-ch2:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on context cancel")
	}
}

func TestChannelNames(t *testing.T) {
	id := uuid.New()
	got, err := RunIDFromChannel(ChannelName(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = RunIDFromChannel("workflow:events:abc")
	assert.Error(t, err)
	_, err = RunIDFromChannel(ChannelPrefix + "not-a-uuid")
	assert.Error(t, err)
}

func TestPayload_Terminal(t *testing.T) {
	tests := []struct {
		stage  string
		action string
		want   bool
	}{
		{"run", "completed", true},
		{"run", "error", true},
		{"run", "created", false},
		{"tailor_docs", "approval_rejected:approve_tailored_docs", true},
		{"browser_flow", "blocked:start_session", true},
		{"browser_flow", "failed:submit", true},
		{"browser_flow", "completed:fill_compliance", false},
		{"job_parse", "completed", false},
		{"captcha", "approval_granted:human_solve", false},
	}

	for _, tt := range tests {
		t.Run(tt.stage+"/"+tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, Payload{Stage: tt.stage, Action: tt.action}.Terminal())
		})
	}
}
