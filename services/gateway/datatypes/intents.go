// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Domains is the closed set of financial domains the gateway routes across.
// Every entry must have a knowledge base partition and an intent table entry.
var Domains = []string{"banking", "loan", "investment", "insurance", "tax"}

// DefaultDomain is the retrieval fallback when domain classification yields
// no confident result.
const DefaultDomain = "banking"

// IsDomain reports whether s is a member of the closed domain set.
func IsDomain(s string) bool {
	for _, d := range Domains {
		if d == s {
			return true
		}
	}
	return false
}

// IntentTable maps domain -> intent -> canned response text. It is loaded
// once at process start and is read-only during request handling.
type IntentTable map[string]map[string]string

// LoadIntentTable reads the intents file (domain -> intent -> canned text).
func LoadIntentTable(path string) (IntentTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the intents file: %w", err)
	}
	var table IntentTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse the intents file %s: %w", path, err)
	}
	for _, domain := range Domains {
		if _, ok := table[domain]; !ok {
			return nil, fmt.Errorf("intents file %s has no entry for domain %q", path, domain)
		}
	}
	slog.Info("Loaded the intent table", "path", path, "domains", len(table))
	return table, nil
}

// Lookup returns the canned response for (domain, intent). ok is false when
// the pair has no entry or the entry is empty, which sends the caller to
// retrieval instead.
func (t IntentTable) Lookup(domain, intent string) (string, bool) {
	domainIntents, ok := t[domain]
	if !ok {
		return "", false
	}
	text, ok := domainIntents[intent]
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// IntentNames returns the sorted intent names for a domain, used to build
// the intent classification prompt.
func (t IntentTable) IntentNames(domain string) []string {
	domainIntents, ok := t[domain]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(domainIntents))
	for name := range domainIntents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
