package board

import (
	"sync"

	"BProject/model"
)

// DefaultMaxHistory bounds the past stack.
const DefaultMaxHistory = 50

// History manages undo/redo state for a document. It holds deep copies only:
// no stored entry ever aliases the live document or another entry.
//
// All operations are total. Undo/redo past the available history are no-ops,
// not errors.
type History struct {
	mu sync.Mutex

	past    []*model.DocumentState
	present *model.DocumentState
	future  []*model.DocumentState

	maxEntries int
}

// NewHistory creates a history manager seeded with the given document.
// A nil initial document is replaced by an empty one.
func NewHistory(initial *model.DocumentState, maxEntries int) *History {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxHistory
	}
	if initial == nil {
		initial = model.NewDocumentState()
	}
	return &History{
		present:    initial.Clone(),
		maxEntries: maxEntries,
	}
}

// Record deep-clones the present document, pushes the clone onto the past
// stack (evicting the oldest entry past the bound) and clears the future
// stack. Callers invoke it immediately before mutating the present state;
// the engine does not infer mutation boundaries itself.
func (h *History) Record() *model.DocumentState {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := h.present.Clone()
	h.pushPastLocked(snap)
	h.future = nil
	return snap
}

// pushPastLocked appends to the past stack enforcing the bound.
func (h *History) pushPastLocked(s *model.DocumentState) {
	h.past = append(h.past, s)
	if len(h.past) > h.maxEntries {
		excess := len(h.past) - h.maxEntries
		h.past = h.past[excess:]
	}
}

// UpdatePresent replaces the present document with a deep clone of newState.
func (h *History) UpdatePresent(newState *model.DocumentState) {
	if newState == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.present = newState.Clone()
}

// Undo moves the present document onto the front of the future stack and
// restores the most recent past entry. Returns false (and does nothing) when
// there is nothing to undo.
func (h *History) Undo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.past) == 0 {
		return false
	}
	h.future = append([]*model.DocumentState{h.present.Clone()}, h.future...)
	h.present = h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	return true
}

// Redo is the inverse of Undo: the present document moves onto the past stack
// and the earliest future entry becomes present. No-op when the future stack
// is empty.
func (h *History) Redo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.future) == 0 {
		return false
	}
	h.pushPastLocked(h.present.Clone())
	h.present = h.future[0]
	h.future = h.future[1:]
	return true
}

// CanUndo reports whether the past stack is non-empty.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past) > 0
}

// CanRedo reports whether the future stack is non-empty.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.future) > 0
}

// Present returns the live document. The caller owning the session may mutate
// it between Record and UpdatePresent; it must never be handed to a remote
// actor (remotes only ever see serialized copies).
func (h *History) Present() *model.DocumentState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.present
}

// PastLen returns the current depth of the past stack.
func (h *History) PastLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past)
}

// Reset clears both stacks and replaces the present document.
func (h *History) Reset(newState *model.DocumentState) {
	if newState == nil {
		newState = model.NewDocumentState()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.past = nil
	h.future = nil
	h.present = newState.Clone()
}
