// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cases runs table-driven reversal cases from a CSV file with the
// header name,input,expected where input and expected are lists like [1,2,3].
package cases

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/noldarim/crewkit/pkg/linkedlist"
)

// ErrNoCases is returned when a case file has a header but no rows
var ErrNoCases = errors.New("no test rows")

// Case is one row of a case file
type Case struct {
	Name     string
	Input    []int
	Expected []int
}

// Result is the outcome of running one case
type Result struct {
	Case   Case
	Got    []int
	Passed bool
}

// Load reads cases from a CSV file
func Load(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads cases from CSV. The first record is the header.
func Parse(r io.Reader) ([]Case, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read cases: %w", err)
	}
	if len(records) <= 1 {
		return nil, ErrNoCases
	}

	out := make([]Case, 0, len(records)-1)
	for i, row := range records[1:] {
		input, err := ParseList(strings.TrimPrefix(strings.TrimSpace(row[1]), "head="))
		if err != nil {
			return nil, fmt.Errorf("case %d: parse input: %w", i+1, err)
		}
		expected, err := ParseList(row[2])
		if err != nil {
			return nil, fmt.Errorf("case %d: parse expected: %w", i+1, err)
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			name = fmt.Sprintf("case %d", i+1)
		}
		out = append(out, Case{Name: name, Input: input, Expected: expected})
	}
	return out, nil
}

// ParseList parses "[1, 2, 3]" (brackets optional) into ints. "[]" is empty.
func ParseList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return []int{}, nil
	}

	raw := strings.Split(s, ",")
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Run reverses each case's input chain and compares it to the expected values
func Run(cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		got := linkedlist.Values(linkedlist.Reverse(linkedlist.FromSlice(c.Input)))
		results = append(results, Result{
			Case:   c,
			Got:    got,
			Passed: slices.Equal(got, c.Expected),
		})
	}
	return results
}

// Summary counts passing results
func Summary(results []Result) (passed, total int) {
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return passed, len(results)
}
