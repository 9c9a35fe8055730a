package chatstate

import "fmt"

// Conversation operations keep ConversationList non-empty, token counters
// non-negative and ChosenConversationID in range. They are safe for
// concurrent use but must not be called from inside a subscriber of the
// cells they write, since those subscribers run while the registry lock is
// held.

// NewConversation appends an empty conversation using the current default
// assistant role, selects it and returns its index.
func (r *Registry) NewConversation() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.Conversations.Read().clone()
	list = append(list, NewConversationWithRole(r.DefaultAssistantRole.Read().Role))
	if err := r.Conversations.Set(list); err != nil {
		return 0, err
	}
	index := len(list) - 1
	r.ChosenConversationID.Write(index)
	return index, nil
}

// RemoveConversation deletes the conversation at index. Removing the last
// one seeds a fresh empty conversation in its place.
func (r *Registry) RemoveConversation(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.Conversations.Read().clone()
	if err := checkIndex(list, index); err != nil {
		return err
	}
	list = append(list[:index], list[index+1:]...)
	if len(list) == 0 {
		list = ConversationList{NewConversationWithRole(r.DefaultAssistantRole.Read().Role)}
	}
	if err := r.Conversations.Set(list); err != nil {
		return err
	}

	chosen := r.ChosenConversationID.Read()
	if chosen > index {
		chosen--
	}
	r.ChosenConversationID.Write(clampIndex(chosen, len(list)))
	return nil
}

func (r *Registry) AppendMessage(index int, message Message) error {
	return r.updateConversation(index, func(c *Conversation) error {
		c.History = append(c.History, message)
		return nil
	})
}

func (r *Registry) SetTitle(index int, title string) error {
	return r.updateConversation(index, func(c *Conversation) error {
		c.Title = title
		return nil
	})
}

// AddTokens adds n to the conversation's running estimate and to the
// combined counter. Both values are checked before either is written, so a
// refused update leaves the two counters in step.
func (r *Registry) AddTokens(index, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTokens, n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.Conversations.Read().clone()
	if err := checkIndex(list, index); err != nil {
		return err
	}
	list[index].ConversationTokens += n
	combined := r.CombinedTokens.Read() + n

	if err := r.Conversations.Check(list); err != nil {
		return err
	}
	if err := r.CombinedTokens.Check(combined); err != nil {
		return err
	}
	if err := r.Conversations.Set(list); err != nil {
		return err
	}
	return r.CombinedTokens.Set(combined)
}

func (r *Registry) SelectConversation(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkIndex(r.Conversations.Read(), index); err != nil {
		return err
	}
	r.ChosenConversationID.Write(index)
	return nil
}

// ChosenConversation returns the selected conversation. ok is false when the
// index has drifted out of range through a direct cell write.
func (r *Registry) ChosenConversation() (Conversation, bool) {
	list := r.Conversations.Read()
	index := r.ChosenConversationID.Read()
	if index < 0 || index >= len(list) {
		return Conversation{}, false
	}
	return list[index].clone(), true
}

// Reset clears every conversation back to a single empty one and zeroes the
// combined token counter.
func (r *Registry) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seed := ConversationList{NewConversationWithRole(r.DefaultAssistantRole.Read().Role)}
	if err := r.Conversations.Set(seed); err != nil {
		return err
	}
	r.ChosenConversationID.Write(0)
	return r.CombinedTokens.Set(0)
}

func (r *Registry) updateConversation(index int, fn func(*Conversation) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateConversationLocked(index, fn)
}

func (r *Registry) updateConversationLocked(index int, fn func(*Conversation) error) error {
	list := r.Conversations.Read().clone()
	if err := checkIndex(list, index); err != nil {
		return err
	}
	if err := fn(&list[index]); err != nil {
		return err
	}
	return r.Conversations.Set(list)
}

func checkIndex(list ConversationList, index int) error {
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidIndex, index, len(list))
	}
	return nil
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if index >= length {
		return length - 1
	}
	return index
}
