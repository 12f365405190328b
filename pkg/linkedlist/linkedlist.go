// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package linkedlist provides a minimal singly-linked chain of nodes and an
// in-place reversal over it.
//
// Nodes are owned by the caller. Reverse only rewrites Next links; it never
// allocates, copies or drops a node. The chain passed to Reverse must be finite
// and acyclic, and must not be mutated by another goroutine during the call.
package linkedlist

import (
	"fmt"
	"strings"
)

// Node is one element of a singly-linked chain. A nil Next marks the tail.
type Node[T any] struct {
	Value T
	Next  *Node[T]
}

// Reverse reverses the chain starting at head in place and returns the new
// head (the former tail). A nil head yields nil.
//
// Runs in a single pass with constant extra space. A cyclic chain never
// terminates.
func Reverse[T any](head *Node[T]) *Node[T] {
	var previous *Node[T]
	current := head
	for current != nil {
		upcoming := current.Next
		current.Next = previous
		previous = current
		current = upcoming
	}
	return previous
}

// FromSlice builds a chain holding values in slice order and returns its head.
func FromSlice[T any](values []T) *Node[T] {
	var head, tail *Node[T]
	for _, v := range values {
		node := &Node[T]{Value: v}
		if head == nil {
			head = node
			tail = node
			continue
		}
		tail.Next = node
		tail = node
	}
	return head
}

// Values returns the value sequence reachable from head.
func Values[T any](head *Node[T]) []T {
	out := []T{}
	for curr := head; curr != nil; curr = curr.Next {
		out = append(out, curr.Value)
	}
	return out
}

// Nodes returns the nodes reachable from head in chain order.
func Nodes[T any](head *Node[T]) []*Node[T] {
	var out []*Node[T]
	for curr := head; curr != nil; curr = curr.Next {
		out = append(out, curr)
	}
	return out
}

// Len counts the nodes reachable from head.
func Len[T any](head *Node[T]) int {
	n := 0
	for curr := head; curr != nil; curr = curr.Next {
		n++
	}
	return n
}

// Format renders the chain as "1 -> 2 -> None".
func Format[T any](head *Node[T]) string {
	var b strings.Builder
	for curr := head; curr != nil; curr = curr.Next {
		fmt.Fprintf(&b, "%v -> ", curr.Value)
	}
	b.WriteString("None")
	return b.String()
}
