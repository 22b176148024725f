// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for the LLM-backed domain and intent classifier

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincove/maya/services/gateway/datatypes"
	"github.com/fincove/maya/services/llm"
)

type stubLLM struct {
	reply string
	err   error
	last  []datatypes.Message
}

func (s *stubLLM) Generate(ctx context.Context, prompt string,
	params llm.GenerationParams) (string, error) {
	return s.reply, s.err
}

func (s *stubLLM) Chat(ctx context.Context, messages []datatypes.Message,
	params llm.GenerationParams) (string, error) {
	s.last = messages
	return s.reply, s.err
}

func TestClassifyDomain(t *testing.T) {
	t.Run("valid domain passes through", func(t *testing.T) {
		c := NewClassifier(&stubLLM{reply: "banking"}, testIntents)
		domain, err := c.ClassifyDomain(context.Background(), "what is my balance")
		require.NoError(t, err)
		assert.Equal(t, "banking", domain)
	})

	t.Run("answer is trimmed and lowercased", func(t *testing.T) {
		c := NewClassifier(&stubLLM{reply: "  Loan \n"}, testIntents)
		domain, err := c.ClassifyDomain(context.Background(), "emi question")
		require.NoError(t, err)
		assert.Equal(t, "loan", domain)
	})

	t.Run("out-of-set answer yields empty", func(t *testing.T) {
		c := NewClassifier(&stubLLM{reply: "cooking"}, testIntents)
		domain, err := c.ClassifyDomain(context.Background(), "recipe for dal")
		require.NoError(t, err)
		assert.Empty(t, domain)
	})

	t.Run("llm error surfaces", func(t *testing.T) {
		c := NewClassifier(&stubLLM{err: errors.New("timeout")}, testIntents)
		_, err := c.ClassifyDomain(context.Background(), "hi")
		assert.Error(t, err)
	})
}

func TestClassifyIntent(t *testing.T) {
	t.Run("known intent passes through", func(t *testing.T) {
		c := NewClassifier(&stubLLM{reply: "check_balance"}, testIntents)
		intent, err := c.ClassifyIntent(context.Background(), "my balance", "banking")
		require.NoError(t, err)
		assert.Equal(t, "check_balance", intent)
	})

	t.Run("unknown yields empty", func(t *testing.T) {
		c := NewClassifier(&stubLLM{reply: "unknown"}, testIntents)
		intent, err := c.ClassifyIntent(context.Background(), "what is a bank", "banking")
		require.NoError(t, err)
		assert.Empty(t, intent)
	})

	t.Run("confident answer outside the table passes through", func(t *testing.T) {
		// A label with no canned entry must still reach the verification
		// gate; the table lookup misses downstream and falls to retrieval.
		c := NewClassifier(&stubLLM{reply: "transfer_funds"}, testIntents)
		intent, err := c.ClassifyIntent(context.Background(), "send money", "banking")
		require.NoError(t, err)
		assert.Equal(t, "transfer_funds", intent)
	})

	t.Run("empty domain short-circuits without an LLM call", func(t *testing.T) {
		stub := &stubLLM{reply: "check_balance"}
		c := NewClassifier(stub, testIntents)
		intent, err := c.ClassifyIntent(context.Background(), "hi", "")
		require.NoError(t, err)
		assert.Empty(t, intent)
		assert.Nil(t, stub.last)
	})

	t.Run("prompt names the domain's intents", func(t *testing.T) {
		stub := &stubLLM{reply: "unknown"}
		c := NewClassifier(stub, testIntents)
		_, err := c.ClassifyIntent(context.Background(), "my balance", "banking")
		require.NoError(t, err)
		require.NotEmpty(t, stub.last)
		assert.Contains(t, stub.last[0].Content, "branch_hours")
		assert.Contains(t, stub.last[0].Content, "check_balance")
	})
}
