// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package dupes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	got := Count([]string{"apple", "banana", "apple", "orange", "banana", "apple"})
	assert.Equal(t, map[string]int{"apple": 3, "banana": 2, "orange": 1}, got)
}

func TestFind(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []Entry
	}{
		{
			name:   "fruit",
			values: []string{"apple", "banana", "apple", "orange", "banana", "apple"},
			want:   []Entry{{Value: "apple", Count: 3}, {Value: "banana", Count: 2}},
		},
		{
			name:   "ties sort by value",
			values: []string{"z", "a", "z", "a", "m"},
			want:   []Entry{{Value: "a", Count: 2}, {Value: "z", Count: 2}},
		},
		{
			name:   "no duplicates",
			values: []string{"x", "y"},
			want:   []Entry{},
		},
		{
			name:   "empty",
			values: nil,
			want:   []Entry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Find(tt.values))
		})
	}
}
