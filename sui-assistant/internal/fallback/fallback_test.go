package fallback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivon-labs/vivon/sui-assistant/internal/graph"
)

func TestRespond(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"sui", "What is Sui?", suiResponse},
		{"blockchain", "explain BLOCKCHAIN basics", suiResponse},
		{"sui wins over move", "Move on Sui", suiResponse},
		{"move", "how do I write Move modules", moveResponse},
		{"smart contract", "deploy a smart contract", moveResponse},
		{"vivon", "what is vivon", vivonResponse},
		{"bounty", "how do I claim a bounty", vivonResponse},
		{"challenge", "join a challenge", vivonResponse},
		{"greeting", "hello there", greetingResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Respond(tt.message))
		})
	}
}

func TestResponsesMentionPlatform(t *testing.T) {
	for _, r := range []string{suiResponse, moveResponse, vivonResponse, greetingResponse} {
		assert.Contains(t, r, "VIVON")
		assert.Contains(t, r, "Sui")
	}
}

func TestStream_ReassemblesText(t *testing.T) {
	sink := &graph.BufferSink{}
	text := "Sui is a layer-1  blockchain"

	require.NoError(t, Stream(context.Background(), text, sink, 0))
	assert.Equal(t, text, sink.String())
	assert.Equal(t, len(strings.Split(text, " ")), sink.Writes())
}

func TestStream_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &graph.BufferSink{}
	err := Stream(ctx, "one two three", sink, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "one ", sink.String())
}

func TestStream_StopsOnWriteError(t *testing.T) {
	calls := 0
	sink := graph.SinkFunc(func(string) error {
		calls++
		return errors.New("broken pipe")
	})
	assert.Error(t, Stream(context.Background(), "a b c", sink, 0))
	assert.Equal(t, 1, calls)
}

func TestAssistant_Answer(t *testing.T) {
	a := NewAssistant("sui_blockchain_assistant", 0)
	assert.Equal(t, "development", a.Mode())
	assert.Equal(t, "sui_blockchain_assistant", a.Service())

	history := []graph.Message{
		{Role: graph.RoleUser, Content: "hello"},
		{Role: graph.RoleAssistant, Content: "hi"},
		{Role: graph.RoleUser, Content: "tell me about bounties on vivon"},
	}

	res, err := a.Answer(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, vivonResponse, res.Answer)
	assert.Len(t, res.Messages, 1)
	assert.False(t, res.Streamed)

	sink := &graph.BufferSink{}
	res, err = a.Answer(context.Background(), history, sink)
	require.NoError(t, err)
	assert.True(t, res.Streamed)
	assert.Equal(t, vivonResponse, sink.String())

	_, err = a.Answer(context.Background(), nil, nil)
	assert.ErrorIs(t, err, graph.ErrNoQuestion)
}
