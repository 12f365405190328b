// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package dupes

import (
	"sort"

	"github.com/samber/lo"
)

// Entry is a value seen more than once and how often it occurred
type Entry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Count returns how many times each value occurs
func Count(values []string) map[string]int {
	return lo.CountValues(values)
}

// Find returns the values occurring more than once, most frequent first and
// alphabetical among equal counts.
func Find(values []string) []Entry {
	entries := lo.FilterMap(lo.Entries(Count(values)), func(e lo.Entry[string, int], _ int) (Entry, bool) {
		return Entry{Value: e.Key, Count: e.Value}, e.Value > 1
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Value < entries[j].Value
	})
	return entries
}
