package normalization

import (
	"testing"
)

type testEnum string

const (
	testEnumAlpha testEnum = "alpha"
	testEnumBeta  testEnum = "beta"
	testEnumGamma testEnum = "gamma"
)

func newTestNormalizer() *Normalizer[testEnum] {
	return NewNormalizer(map[string]testEnum{
		"alpha": testEnumAlpha,
		"beta":  testEnumBeta,
		"gamma": testEnumGamma,
	}, testEnumAlpha)
}

func TestNormalizer_Basic(t *testing.T) {
	normalizer := newTestNormalizer()

	tests := []struct {
		name     string
		input    string
		expected testEnum
	}{
		{"exact match", "alpha", testEnumAlpha},
		{"case insensitive", "BETA", testEnumBeta},
		{"with spaces", "  beta  ", testEnumBeta},
		{"mixed case spaces", "  GaMmA  ", testEnumGamma},
		{"invalid input", "invalid", testEnumAlpha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizer.Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_WithError(t *testing.T) {
	normalizer := newTestNormalizer()

	if v, err := normalizer.NormalizeWithError("Gamma"); err != nil || v != testEnumGamma {
		t.Errorf("expected gamma without error, got %v, %v", v, err)
	}
	if v, err := normalizer.NormalizeWithError(""); err != nil || v != testEnumAlpha {
		t.Errorf("expected default for empty input, got %v, %v", v, err)
	}
	if _, err := normalizer.NormalizeWithError("delta"); err == nil {
		t.Error("expected error for unknown value")
	}
}

func TestNormalizer_ValidKeysSorted(t *testing.T) {
	keys := newTestNormalizer().ValidKeys()
	want := []string{"alpha", "beta", "gamma"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("expected %v, got %v", want, keys)
		}
	}
}
