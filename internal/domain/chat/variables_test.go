package chat_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/domain/chat"
)

func TestInputBuilder_DefaultTable(t *testing.T) {
	b := chat.NewInputBuilder(chat.DefaultVariables, nil, zerolog.Nop())
	inputs := b.Build(chat.VariableContext{Timestamp: "2025-07-21T14:30:00.000Z"})

	conversation, ok := inputs["conversation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, conversation["is_first"])
	assert.Equal(t, "", conversation["customer_name"])
	assert.Equal(t, 0, conversation["feature_image"])
	assert.Equal(t, []string{}, conversation["llm_context"])
	assert.Equal(t, []string{}, conversation["user_context"])

	session, ok := inputs["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2025-07-21T14:30:00.000Z", session["start_time"])
}

func TestInputBuilder_IsFirstForContinuation(t *testing.T) {
	b := chat.NewInputBuilder(chat.DefaultVariables, nil, zerolog.Nop())
	inputs := b.Build(chat.VariableContext{ConversationID: "550e8400-e29b-41d4-a716-446655440000"})
	assert.Equal(t, 0, inputs["conversation"].(map[string]any)["is_first"])
}

func TestInputBuilder_EnabledFilter(t *testing.T) {
	b := chat.NewInputBuilder(chat.DefaultVariables, []string{"session.start_time", "conversation.unknown"}, zerolog.Nop())
	inputs := b.Build(chat.VariableContext{Timestamp: "t"})

	assert.NotContains(t, inputs, "conversation")
	assert.Equal(t, map[string]any{"start_time": "t"}, inputs["session"])
}

func TestInputBuilder_IsolatesFailingGenerators(t *testing.T) {
	vars := []chat.Variable{
		{Path: "conversation.ok", Generate: func(chat.VariableContext) (any, error) { return "yes", nil }},
		{Path: "conversation.broken", Generate: func(chat.VariableContext) (any, error) { return nil, errors.New("boom") }},
		{Path: "conversation.panics", Generate: func(chat.VariableContext) (any, error) { panic("bad") }},
		{Path: "malformed", Generate: func(chat.VariableContext) (any, error) { return 1, nil }},
	}
	b := chat.NewInputBuilder(vars, nil, zerolog.Nop())

	inputs := b.Build(chat.VariableContext{})
	assert.Equal(t, map[string]any{"conversation": map[string]any{"ok": "yes"}}, inputs)
}

func TestTruncateMessage(t *testing.T) {
	short, cut := chat.TruncateMessage("hello")
	assert.False(t, cut)
	assert.Equal(t, "hello", short)

	long := make([]rune, chat.MaxMessageRunes+1)
	for i := range long {
		long[i] = 'あ'
	}
	got, cut := chat.TruncateMessage(string(long))
	assert.True(t, cut)
	assert.Equal(t, string(long[:chat.MaxMessageRunes])+"...", got)
}
