package chatstate

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-chatstate/pkg/storage"
)

func TestNewConversationUsesCurrentRoleAndSelects(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRegistry(t, store)
	r.DefaultAssistantRole.Write(DefaultAssistantRole{Role: "Answer in French.", Type: "system"})

	index, err := r.NewConversation()
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if index != 1 || r.ChosenConversationID.Read() != 1 {
		t.Fatalf("expected new conversation selected at 1, got index %d chosen %d", index, r.ChosenConversationID.Read())
	}
	chosen, ok := r.ChosenConversation()
	if !ok || chosen.AssistantRole != "Answer in French." || len(chosen.History) != 0 {
		t.Fatalf("unexpected chosen conversation %+v", chosen)
	}
	if raw := mustGet(t, store, KeyConversations); !strings.Contains(raw, "Answer in French.") {
		t.Fatalf("expected new conversation persisted, got %s", raw)
	}
}

func TestRemoveConversation(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	for i := 0; i < 3; i++ {
		if _, err := r.NewConversation(); err != nil {
			t.Fatalf("new conversation: %v", err)
		}
	}
	for i := range r.Conversations.Read() {
		if err := r.SetTitle(i, string(rune('a'+i))); err != nil {
			t.Fatalf("set title: %v", err)
		}
	}
	if err := r.SelectConversation(3); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := r.RemoveConversation(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	titles := []string{}
	for _, c := range r.Conversations.Read() {
		titles = append(titles, c.Title)
	}
	if strings.Join(titles, "") != "acd" {
		t.Fatalf("unexpected remaining titles %v", titles)
	}
	if chosen, _ := r.ChosenConversation(); chosen.Title != "d" {
		t.Fatalf("selection must follow the chosen conversation, got %q", chosen.Title)
	}

	if err := r.RemoveConversation(2); err != nil {
		t.Fatalf("remove chosen: %v", err)
	}
	if r.ChosenConversationID.Read() != 1 {
		t.Fatalf("expected selection clamped to 1, got %d", r.ChosenConversationID.Read())
	}
}

func TestRemoveLastConversationReseeds(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	if err := r.SetTitle(0, "only"); err != nil {
		t.Fatalf("set title: %v", err)
	}

	if err := r.RemoveConversation(0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	list := r.Conversations.Read()
	if len(list) != 1 || list[0].Title != "" || list[0].AssistantRole != DefaultAssistantPrompt {
		t.Fatalf("expected a fresh seeded conversation, got %+v", list)
	}
	if r.ChosenConversationID.Read() != 0 {
		t.Fatalf("expected selection 0, got %d", r.ChosenConversationID.Read())
	}
}

func TestConversationOperationsRejectBadIndex(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	checks := map[string]func() error{
		"remove": func() error { return r.RemoveConversation(1) },
		"append": func() error { return r.AppendMessage(-1, Message{Role: "user"}) },
		"title":  func() error { return r.SetTitle(5, "x") },
		"tokens": func() error { return r.AddTokens(2, 1) },
		"select": func() error { return r.SelectConversation(1) },
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			if err := fn(); !errors.Is(err, ErrInvalidIndex) {
				t.Fatalf("expected ErrInvalidIndex, got %v", err)
			}
		})
	}
	if len(r.Conversations.Read()) != 1 {
		t.Fatalf("failed operations must not change the list")
	}
}

func TestAppendMessageDoesNotAliasReadValues(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	before := r.Conversations.Read()

	if err := r.AppendMessage(0, Message{Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(before[0].History) != 0 {
		t.Fatalf("previously read value was mutated: %+v", before[0].History)
	}
	if got := r.Conversations.Read()[0].History; len(got) != 1 || got[0].Content != "hello" {
		t.Fatalf("unexpected history %+v", got)
	}
}

func TestAddTokens(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRegistry(t, store)
	if _, err := r.NewConversation(); err != nil {
		t.Fatalf("new conversation: %v", err)
	}

	if err := r.AddTokens(0, 10); err != nil {
		t.Fatalf("add tokens: %v", err)
	}
	if err := r.AddTokens(1, 5); err != nil {
		t.Fatalf("add tokens: %v", err)
	}
	if err := r.AddTokens(1, -1); !errors.Is(err, ErrNegativeTokens) {
		t.Fatalf("expected ErrNegativeTokens, got %v", err)
	}

	list := r.Conversations.Read()
	if list[0].ConversationTokens != 10 || list[1].ConversationTokens != 5 {
		t.Fatalf("unexpected conversation tokens %+v", list)
	}
	if r.CombinedTokens.Read() != 15 {
		t.Fatalf("expected combined 15, got %d", r.CombinedTokens.Read())
	}
	if got := mustGet(t, store, KeyCombinedTokens); got != "15" {
		t.Fatalf("expected stored 15, got %q", got)
	}
}

func TestAddTokensRefusedByCombinedRuleWritesNothing(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRegistry(t, store, WithRules(KeyCombinedTokens, "value < 100"))

	if err := r.AddTokens(0, 150); !errors.Is(err, ErrRuleViolation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if got := r.Conversations.Read()[0].ConversationTokens; got != 0 {
		t.Fatalf("expected conversation tokens unchanged, got %d", got)
	}
	if r.CombinedTokens.Read() != 0 {
		t.Fatalf("expected combined tokens unchanged, got %d", r.CombinedTokens.Read())
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Fatalf("refused update must not persist, found %v", keys)
	}

	if err := r.AddTokens(0, 60); err != nil {
		t.Fatalf("add tokens: %v", err)
	}
	if got := r.Conversations.Read()[0].ConversationTokens; got != 60 || r.CombinedTokens.Read() != 60 {
		t.Fatalf("expected both counters at 60, got %d and %d", got, r.CombinedTokens.Read())
	}
}

func TestInvariantsHoldWithoutDefaultRules(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore(), WithoutDefaultRules())

	if err := r.Conversations.Set(ConversationList{}); !errors.Is(err, ErrEmptyConversations) {
		t.Fatalf("expected ErrEmptyConversations, got %v", err)
	}
	if len(r.Conversations.Read()) != 1 {
		t.Fatalf("expected seeded list kept, got %+v", r.Conversations.Read())
	}
	if err := r.CombinedTokens.Set(-5); !errors.Is(err, ErrNegativeTokens) {
		t.Fatalf("expected ErrNegativeTokens, got %v", err)
	}
	if err := r.DefaultAssistantRole.Set(DefaultAssistantRole{Type: "system"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := r.Model.Set(GptModel{Code: "gpt-4"}); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
	if err := r.CombinedTokens.Set(0); err != nil {
		t.Fatalf("expected zero to pass, got %v", err)
	}
}

func TestChosenConversationOutOfRange(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())
	r.ChosenConversationID.Write(4)
	if _, ok := r.ChosenConversation(); ok {
		t.Fatalf("expected no chosen conversation for an out of range index")
	}
}

func TestReset(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRegistry(t, store)
	if _, err := r.NewConversation(); err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if err := r.AddTokens(1, 30); err != nil {
		t.Fatalf("add tokens: %v", err)
	}

	if err := r.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(r.Conversations.Read()) != 1 || r.ChosenConversationID.Read() != 0 || r.CombinedTokens.Read() != 0 {
		t.Fatalf("unexpected state after reset")
	}
	if got := mustGet(t, store, KeyCombinedTokens); got != "0" {
		t.Fatalf("expected stored zero, got %q", got)
	}
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	r := newTestRegistry(t, storage.NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.AppendMessage(0, Message{Role: "user", Content: "x"})
			_ = r.AddTokens(0, 1)
		}()
	}
	wg.Wait()

	c := r.Conversations.Read()[0]
	if len(c.History) != 20 || c.ConversationTokens != 20 || r.CombinedTokens.Read() != 20 {
		t.Fatalf("lost updates: history=%d tokens=%d combined=%d", len(c.History), c.ConversationTokens, r.CombinedTokens.Read())
	}
}
