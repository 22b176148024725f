// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"sync"

	"github.com/fincove/maya/services/gateway/datatypes"
)

// DefaultMemoryWindow bounds the per-session sliding window.
const DefaultMemoryWindow = 16

// MemoryStore holds bounded conversational memory per session. Windows are
// created lazily on first append and evicted when the session ends. Eviction
// inside a window is strict FIFO on the order of addition.
//
// The store is safe for concurrent use from independent session goroutines;
// access within one session is already sequential (one in-flight turn).
type MemoryStore struct {
	mu       sync.Mutex
	window   int
	sessions map[string][]datatypes.Message
}

func NewMemoryStore(window int) *MemoryStore {
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &MemoryStore{
		window:   window,
		sessions: make(map[string][]datatypes.Message),
	}
}

// Append adds one role-tagged message to the session's window, dropping the
// oldest message when the bound is exceeded.
func (s *MemoryStore) Append(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append(s.sessions[sessionID], datatypes.Message{Role: role, Content: content})
	if len(messages) > s.window {
		messages = messages[len(messages)-s.window:]
	}
	s.sessions[sessionID] = messages
}

// History returns a copy of the session's window, oldest first. A session
// with no memory yields an empty slice.
func (s *MemoryStore) History(sessionID string) []datatypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.sessions[sessionID]
	out := make([]datatypes.Message, len(messages))
	copy(out, messages)
	return out
}

// Len reports the number of messages currently stored for a session.
func (s *MemoryStore) Len(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[sessionID])
}

// Evict removes the session's window entirely.
func (s *MemoryStore) Evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
