package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// VariableContext is everything an input variable may be derived from.
type VariableContext struct {
	ConversationID      string
	UserID              string
	CustomerName        string
	Phone               string
	ReservationDateTime string
	MenuName            string
	FeatureImage        int
	LLMContext          []string
	UserContext         []string
	Timestamp           string
}

// Variable produces one named Dify input. Path is "<category>.<key>".
type Variable struct {
	Path     string
	Generate func(VariableContext) (any, error)
}

// DefaultVariables is the conversation variable table sent with every chat request.
var DefaultVariables = []Variable{
	{Path: "conversation.is_first", Generate: func(c VariableContext) (any, error) {
		if strings.TrimSpace(c.ConversationID) == "" {
			return 1, nil
		}
		return 0, nil
	}},
	{Path: "conversation.customer_name", Generate: func(c VariableContext) (any, error) { return c.CustomerName, nil }},
	{Path: "conversation.phone", Generate: func(c VariableContext) (any, error) { return c.Phone, nil }},
	{Path: "conversation.reservation_date_and_time", Generate: func(c VariableContext) (any, error) { return c.ReservationDateTime, nil }},
	{Path: "conversation.menu_name", Generate: func(c VariableContext) (any, error) { return c.MenuName, nil }},
	{Path: "conversation.feature_image", Generate: func(c VariableContext) (any, error) { return c.FeatureImage, nil }},
	{Path: "conversation.llm_context", Generate: func(c VariableContext) (any, error) { return nonNil(c.LLMContext), nil }},
	{Path: "conversation.user_context", Generate: func(c VariableContext) (any, error) { return nonNil(c.UserContext), nil }},
	{Path: "session.start_time", Generate: func(c VariableContext) (any, error) {
		if c.Timestamp != "" {
			return c.Timestamp, nil
		}
		return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"), nil
	}},
}

// InputBuilder assembles the nested "inputs" object of a chat request.
type InputBuilder struct {
	variables []Variable
	enabled   map[string]struct{}
	log       zerolog.Logger
}

// NewInputBuilder restricts generation to enabledPaths when it is non-empty.
func NewInputBuilder(variables []Variable, enabledPaths []string, log zerolog.Logger) *InputBuilder {
	var enabled map[string]struct{}
	if len(enabledPaths) > 0 {
		enabled = make(map[string]struct{}, len(enabledPaths))
		for _, p := range enabledPaths {
			enabled[strings.TrimSpace(p)] = struct{}{}
		}
	}
	return &InputBuilder{
		variables: variables,
		enabled:   enabled,
		log:       log.With().Str("component", "dify-variables").Logger(),
	}
}

// Build runs every enabled generator. A generator that errors or panics only drops its own field.
func (b *InputBuilder) Build(vc VariableContext) map[string]any {
	inputs := make(map[string]any)
	for _, v := range b.variables {
		if b.enabled != nil {
			if _, ok := b.enabled[v.Path]; !ok {
				continue
			}
		}
		category, key, ok := strings.Cut(v.Path, ".")
		if !ok || category == "" || key == "" {
			b.log.Warn().Str("path", v.Path).Msg("skipping variable with malformed path")
			continue
		}

		group, _ := inputs[category].(map[string]any)
		if group == nil {
			group = make(map[string]any)
			inputs[category] = group
		}

		value, err := generate(v, vc)
		if err != nil {
			b.log.Warn().Err(err).Str("path", v.Path).Msg("failed to generate variable")
			continue
		}
		group[key] = value
	}
	return inputs
}

func generate(v Variable, vc VariableContext) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panicked: %v", r)
		}
	}()
	return v.Generate(vc)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
