package records

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

func TestIsAreaColumn(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"Patta Dry", true},
		{"Punjai Extent", true},
		{"WET", true},
		{"Nanjei", true},
		{"Inam Land", true},
		{"Manyam", true},
		{"Dotted", true},
		{"Unassessed Waste", true},
		{"Anadheenam", true},
		{"Tharisu", true},
		{"Poramboke", true},
		{"Government Land", true},
		{"Govt", true},
		{"Total Dry", false},
		{"totalExtent", false},
		{"Village", false},
		{"Survey No", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAreaColumn(tt.header))
		})
	}
}

func TestParseArea(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"2.5 Ac", 2.5},
		{"1 Ac", 1},
		{"1,200.75", 1200.75},
		{"Hec 0.40", 0.4},
		{"", 0},
		{"nil", 0},
		{"1.2.3", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseArea(tt.in), 1e-9)
		})
	}
}

func TestTotalExtent(t *testing.T) {
	cols := types.NewColumns("Patta Dry", "2.5 Ac", "Poramboke", "1 Ac")
	assert.Equal(t, "3.50", TotalExtent(cols))

	assert.Equal(t, "0.00", TotalExtent(types.NewColumns("Village", "Melur")))

	cols = types.NewColumns("Wet", "1.25", "Dry", "2", "Total Dry", "100")
	assert.Equal(t, "3.25", TotalExtent(cols))
}
