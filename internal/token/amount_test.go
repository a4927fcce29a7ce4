package token

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int
		want     string
	}{
		{"one and a half", "1500000000000000000", 18, "1.5"},
		{"whole number", "2000000000000000000", 18, "2"},
		{"zero", "0", 18, "0"},
		{"sub-unit", "1", 18, "0.000000000000000001"},
		{"six decimals", "1234567", 6, "1.234567"},
		{"zero decimals", "42", 0, "42"},
		{"negative", "-1500000000000000000", 18, "-1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := new(big.Int).SetString(tt.raw, 10)
			if got := FormatUnits(raw, tt.decimals); got != tt.want {
				t.Errorf("FormatUnits(%s, %d) = %s, want %s", tt.raw, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		decimals int
		want     string
		wantErr  bool
	}{
		{"one and a half", "1.5", 18, "1500000000000000000", false},
		{"whole number", "2", 18, "2000000000000000000", false},
		{"leading dot", ".5", 6, "500000", false},
		{"full precision", "0.000001", 6, "1", false},
		{"too many decimals", "0.0000001", 6, "", true},
		{"empty", "", 18, "", true},
		{"garbage", "abc", 18, "", true},
		{"negative", "-1.5", 18, "-1500000000000000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.in, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseUnits(%q, %d) expected error, got %s", tt.in, tt.decimals, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUnits(%q, %d) error = %v", tt.in, tt.decimals, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseUnits(%q, %d) = %s, want %s", tt.in, tt.decimals, got, tt.want)
			}
		})
	}
}

// Property: formatting a raw value and reparsing it at the same precision
// yields the original value.
func TestFormatParseRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("FormatUnits then ParseUnits is identity", prop.ForAll(
		func(raw int64, decimals int) bool {
			value := big.NewInt(raw)
			formatted := FormatUnits(value, decimals)
			parsed, err := ParseUnits(formatted, decimals)
			if err != nil {
				return false
			}
			return parsed.Cmp(value) == 0
		},
		gen.Int64(),
		gen.IntRange(0, 18),
	))

	properties.TestingRun(t)
}
