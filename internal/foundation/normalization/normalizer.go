package normalization

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Normalizer provides type-safe string-to-enum normalization with error handling.
type Normalizer[T comparable] struct {
	validValues  map[string]T
	defaultValue T
	validKeys    []string // Cached for error messages
	fold         Func
}

// NewNormalizer creates a normalizer with a map of valid string->value pairs.
// Keys are case-folded, so "Daily", "DAILY" and "daily" all resolve to the same value.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	return WithCustomNormalizer(values, defaultValue, Fold)
}

// Normalize attempts to convert a string to the enum type.
// Returns the default value if the string is not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.Lookup(raw); ok {
		return value
	}
	return n.defaultValue
}

// Lookup reports the value for raw and whether it was recognized.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	value, exists := n.validValues[n.key(raw)]
	return value, exists
}

// NormalizeWithError attempts to convert a string to the enum type.
// Returns an error if the string is not recognized.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if value, ok := n.Lookup(raw); ok {
		return value, nil
	}

	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.validKeys)
}

// ValidKeys returns all valid normalized keys.
func (n *Normalizer[T]) ValidKeys() []string {
	result := make([]string, len(n.validKeys))
	copy(result, n.validKeys)
	return result
}

func (n *Normalizer[T]) key(raw string) string {
	if n.fold == nil {
		return Fold(raw)
	}
	return n.fold(raw)
}

// Fold trims surrounding whitespace and applies Unicode case folding.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Func allows custom normalization behavior.
type Func func(string) string

// WithCustomNormalizer creates a normalizer with custom string normalization.
func WithCustomNormalizer[T comparable](values map[string]T, defaultValue T, normalizer Func) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))

	for k, v := range values {
		normalizedKey := normalizer(k)
		normalized[normalizedKey] = v
		validKeys = append(validKeys, normalizedKey)
	}

	sort.Strings(validKeys)

	return &Normalizer[T]{
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
		fold:         normalizer,
	}
}
