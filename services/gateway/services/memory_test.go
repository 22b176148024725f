// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for the per-session sliding memory window

package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_WindowIsFIFO(t *testing.T) {
	store := NewMemoryStore(4)

	for i := 0; i < 10; i++ {
		store.Append("s1", "user", fmt.Sprintf("msg-%d", i))
	}

	history := store.History("s1")
	require.Len(t, history, 4)
	// The four newest survive, oldest first.
	assert.Equal(t, "msg-6", history[0].Content)
	assert.Equal(t, "msg-9", history[3].Content)
}

func TestMemoryStore_DefaultWindow(t *testing.T) {
	store := NewMemoryStore(0)

	for i := 0; i < DefaultMemoryWindow+5; i++ {
		store.Append("s1", "user", fmt.Sprintf("msg-%d", i))
	}
	assert.Equal(t, DefaultMemoryWindow, store.Len("s1"))
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	store := NewMemoryStore(4)
	store.Append("s1", "user", "hello from s1")
	store.Append("s2", "user", "hello from s2")

	require.Len(t, store.History("s1"), 1)
	require.Len(t, store.History("s2"), 1)
	assert.Equal(t, "hello from s1", store.History("s1")[0].Content)

	store.Evict("s1")
	assert.Zero(t, store.Len("s1"))
	assert.Equal(t, 1, store.Len("s2"))
}

func TestMemoryStore_HistoryReturnsCopy(t *testing.T) {
	store := NewMemoryStore(4)
	store.Append("s1", "user", "original")

	history := store.History("s1")
	history[0].Content = "mutated"

	assert.Equal(t, "original", store.History("s1")[0].Content)
}

func TestMemoryStore_UnknownSessionIsEmpty(t *testing.T) {
	store := NewMemoryStore(4)
	assert.Empty(t, store.History("nope"))
	assert.Zero(t, store.Len("nope"))
}

func TestMemoryStore_ConcurrentSessions(t *testing.T) {
	store := NewMemoryStore(8)

	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", s)
			for i := 0; i < 50; i++ {
				store.Append(session, "user", fmt.Sprintf("msg-%d", i))
				store.History(session)
			}
		}(s)
	}
	wg.Wait()

	for s := 0; s < 4; s++ {
		assert.Equal(t, 8, store.Len(fmt.Sprintf("s%d", s)))
	}
}
