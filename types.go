package chatstate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidIndex       = errors.New("chatstate: conversation index out of range")
	ErrNegativeTokens     = errors.New("chatstate: token count must not be negative")
	ErrEmptyConversations = errors.New("chatstate: conversation list must not be empty")
	ErrInvalidModel       = errors.New("chatstate: invalid model")
	ErrInvalidRole        = errors.New("chatstate: invalid assistant role")
	ErrRuleViolation      = errors.New("chatstate: rule violation")
	ErrNoEvaluator        = errors.New("chatstate: evaluator not configured")
)

// Message is one turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Conversation is an ordered message history with a running token estimate.
type Conversation struct {
	History            []Message `json:"history"`
	ConversationTokens int       `json:"conversationTokens"`
	AssistantRole      string    `json:"assistantRole"`
	Title              string    `json:"title"`
}

func nonNegativeTokens(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTokens, n)
	}
	return nil
}

// NewConversationWithRole returns an empty conversation using assistantRole
// as its system prompt.
func NewConversationWithRole(assistantRole string) Conversation {
	return Conversation{
		History:       []Message{},
		AssistantRole: assistantRole,
	}
}

func (c Conversation) Validate() error {
	if c.ConversationTokens < 0 {
		return ErrNegativeTokens
	}
	return nil
}

func (c Conversation) clone() Conversation {
	out := c
	out.History = append(make([]Message, 0, len(c.History)), c.History...)
	return out
}

// ConversationList holds every conversation; it is never empty.
type ConversationList []Conversation

func (l ConversationList) Validate() error {
	if len(l) == 0 {
		return ErrEmptyConversations
	}
	for i, c := range l {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("conversation %d: %w", i, err)
		}
	}
	return nil
}

func (l ConversationList) clone() ConversationList {
	out := make(ConversationList, len(l))
	for i, c := range l {
		out[i] = c.clone()
	}
	return out
}

// DefaultAssistantRole is the system prompt applied to new conversations.
type DefaultAssistantRole struct {
	Role string `json:"role"`
	Type string `json:"type"`
}

func (r DefaultAssistantRole) Validate() error {
	if strings.TrimSpace(r.Role) == "" {
		return fmt.Errorf("%w: role is required", ErrInvalidRole)
	}
	return nil
}

// GptModel carries pricing and context limits for a backend model. Costs are
// per thousand tokens.
type GptModel struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	InputCost  float64 `json:"inputCost"`
	OutputCost float64 `json:"outputCost"`
	TokenLimit int     `json:"tokenLimit"`
}

func (m GptModel) Validate() error {
	if m.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidModel)
	}
	if m.TokenLimit <= 0 {
		return fmt.Errorf("%w: token limit must be positive", ErrInvalidModel)
	}
	if m.InputCost < 0 || m.OutputCost < 0 {
		return fmt.Errorf("%w: costs must not be negative", ErrInvalidModel)
	}
	return nil
}

// EstimateCost prices a request from its prompt and completion token counts.
func (m GptModel) EstimateCost(promptTokens, completionTokens int) float64 {
	return (float64(promptTokens)*m.InputCost + float64(completionTokens)*m.OutputCost) / 1000
}
