package domain

import (
	"reflect"
	"testing"
)

func TestParseCartKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want CartKey
	}{
		{"plain item", "item_3", CartKey{Kind: CartKeyItem, ID: 3}},
		{"item with optionals", "item_3_10_12", CartKey{Kind: CartKeyItem, ID: 3, Extras: []int64{10, 12}}},
		{"combo with choices", "combo_5_7_9", CartKey{Kind: CartKeyCombo, ID: 5, Extras: []int64{7, 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCartKey(tt.in)
			if err != nil {
				t.Fatalf("ParseCartKey(%q) returned error: %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCartKey(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestParseCartKeyRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"kind only", "item"},
		{"unknown kind", "pizza_3"},
		{"non numeric id", "item_abc"},
		{"zero id", "item_0"},
		{"negative id", "item_-2"},
		{"non numeric extra", "item_3_x"},
		{"zero extra", "combo_5_0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCartKey(tt.in); err == nil {
				t.Errorf("ParseCartKey(%q) succeeded, want error", tt.in)
			}
		})
	}
}
