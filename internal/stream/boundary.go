// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"strings"
)

// Boundary selects how the end of an embedded object is located.
type Boundary string

const (
	// BoundaryStrict ignores braces inside JSON string literals.
	BoundaryStrict Boundary = "strict"
	// BoundaryNaive counts every brace, including those inside strings.
	BoundaryNaive Boundary = "naive"
)

// ParseBoundary maps a configuration value to a Boundary. Empty means
// strict.
func ParseBoundary(s string) (Boundary, error) {
	switch Boundary(strings.ToLower(strings.TrimSpace(s))) {
	case "", BoundaryStrict:
		return BoundaryStrict, nil
	case BoundaryNaive:
		return BoundaryNaive, nil
	}
	return BoundaryStrict, fmt.Errorf("unknown boundary mode %q", s)
}

// matchObject returns the index of the brace closing the object that
// opens at s[0], or -1 if s does not contain it yet. s[0] must be '{'.
func (b Boundary) matchObject(s string) int {
	if b == BoundaryNaive {
		return matchNaive(s)
	}
	return matchStrict(s)
}

func matchNaive(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func matchStrict(s string) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
