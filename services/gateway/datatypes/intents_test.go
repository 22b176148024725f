// Copyright (C) 2025 FinCove Pvt. Ltd.
// Tests for the intent table and the closed domain set

package datatypes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIntentsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intents.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIsDomain(t *testing.T) {
	for _, d := range Domains {
		assert.True(t, IsDomain(d))
	}
	assert.False(t, IsDomain("cooking"))
	assert.False(t, IsDomain("Banking"))
	assert.False(t, IsDomain(""))
}

func TestLoadIntentTable(t *testing.T) {
	t.Run("valid table loads", func(t *testing.T) {
		path := writeIntentsFile(t, `{
			"banking": {"check_balance": "Check in the app."},
			"loan": {},
			"investment": {},
			"insurance": {},
			"tax": {}
		}`)
		table, err := LoadIntentTable(path)
		require.NoError(t, err)

		text, ok := table.Lookup("banking", "check_balance")
		assert.True(t, ok)
		assert.Equal(t, "Check in the app.", text)
	})

	t.Run("missing domain is rejected", func(t *testing.T) {
		path := writeIntentsFile(t, `{"banking": {}}`)
		_, err := LoadIntentTable(path)
		assert.Error(t, err)
	})

	t.Run("missing file is rejected", func(t *testing.T) {
		_, err := LoadIntentTable(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed JSON is rejected", func(t *testing.T) {
		path := writeIntentsFile(t, `{"banking":`)
		_, err := LoadIntentTable(path)
		assert.Error(t, err)
	})
}

func TestIntentTable_Lookup(t *testing.T) {
	table := IntentTable{
		"banking": {
			"check_balance": "Check in the app.",
			"blank_entry":   "   ",
		},
	}

	_, ok := table.Lookup("banking", "nonexistent")
	assert.False(t, ok)

	// A whitespace-only canned answer routes to retrieval instead.
	_, ok = table.Lookup("banking", "blank_entry")
	assert.False(t, ok)

	_, ok = table.Lookup("cooking", "check_balance")
	assert.False(t, ok)
}

func TestIntentTable_IntentNamesAreSorted(t *testing.T) {
	table := IntentTable{
		"banking": {"zeta": "z", "alpha": "a", "mid": "m"},
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, table.IntentNames("banking"))
	assert.Nil(t, table.IntentNames("cooking"))
}
