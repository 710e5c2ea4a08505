package normalization

import "fmt"

// EnumNormalizer wraps a Normalizer with an enum name for descriptive errors and warnings.
type EnumNormalizer[T comparable] struct {
	normalizer *Normalizer[T]
	enumName   string
}

// NewEnumNormalizer creates an enum normalizer with descriptive error messages.
func NewEnumNormalizer[T comparable](enumName string, values map[string]T, defaultValue T) *EnumNormalizer[T] {
	return &EnumNormalizer[T]{
		normalizer: NewNormalizer(values, defaultValue),
		enumName:   enumName,
	}
}

// Normalize converts raw string to enum value, returning default on invalid input.
func (e *EnumNormalizer[T]) Normalize(raw string) T {
	return e.normalizer.Normalize(raw)
}

// Lookup reports the value for raw and whether it was recognized.
func (e *EnumNormalizer[T]) Lookup(raw string) (T, bool) {
	return e.normalizer.Lookup(raw)
}

// NormalizeWithValidation converts raw string to enum value with validation error.
func (e *EnumNormalizer[T]) NormalizeWithValidation(raw string) (T, error) {
	result, err := e.normalizer.NormalizeWithError(raw)
	if err != nil {
		return result, fmt.Errorf("invalid %s: %w", e.enumName, err)
	}
	return result, nil
}

// ValidValues returns all valid enum keys for documentation/help.
func (e *EnumNormalizer[T]) ValidValues() []string {
	return e.normalizer.ValidKeys()
}

// NormalizationResult represents the outcome of a normalization operation
// with optional warnings about value changes.
type NormalizationResult[T comparable] struct {
	Value   T
	Changed bool
	Warning string
}

// NormalizeWithWarning performs normalization and tracks if the value was changed.
func (e *EnumNormalizer[T]) NormalizeWithWarning(fieldName, raw string) NormalizationResult[T] {
	cleaned := e.normalizer.key(raw)
	normalized := e.normalizer.Normalize(raw)

	changed := cleaned != raw
	var warning string
	if changed {
		warning = fmt.Sprintf("normalized %s from '%s' to '%s'", fieldName, raw, cleaned)
	}

	return NormalizationResult[T]{
		Value:   normalized,
		Changed: changed,
		Warning: warning,
	}
}
