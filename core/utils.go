package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ContainsInt reports whether v is in ids.
func ContainsInt(ids []int, v int) bool {
	for _, id := range ids {
		if id == v {
			return true
		}
	}
	return false
}

// UniqueInts returns ids without duplicates, keeping the first occurrence order.
func UniqueInts(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// RemoveInts returns ids minus every element of drop.
func RemoveInts(ids []int, drop ...int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !ContainsInt(drop, id) {
			out = append(out, id)
		}
	}
	return out
}

// Percent returns round(part / total * 100), rounding halves up.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}
