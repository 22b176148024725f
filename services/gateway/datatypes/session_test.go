// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for control message parsing

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseControlMessage(t *testing.T) {
	t.Run("verification_complete parses", func(t *testing.T) {
		msg, ok := ParseControlMessage([]byte(`{"type":"verification_complete"}`))
		assert.True(t, ok)
		assert.Equal(t, ControlVerificationComplete, msg.Type)
	})

	t.Run("extra fields are tolerated", func(t *testing.T) {
		msg, ok := ParseControlMessage([]byte(`{"type":"ping","ts":12345}`))
		assert.True(t, ok)
		assert.Equal(t, "ping", msg.Type)
	})

	t.Run("plain text is not a control message", func(t *testing.T) {
		_, ok := ParseControlMessage([]byte(`what is my balance`))
		assert.False(t, ok)
	})

	t.Run("JSON without a type is not a control message", func(t *testing.T) {
		_, ok := ParseControlMessage([]byte(`{"query":"balance"}`))
		assert.False(t, ok)
	})

	t.Run("truncated JSON is not a control message", func(t *testing.T) {
		_, ok := ParseControlMessage([]byte(`{"type":"verification`))
		assert.False(t, ok)
	})
}
