package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const floatTolerance = 1e-9

func TestRecallAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		k         int
		want      float64
	}{
		{"all found", []string{"r1", "r2"}, []string{"r2", "r1", "r9"}, 10, 1.0},
		{"half found", []string{"r1", "r2", "r3", "r4"}, []string{"r1", "r9", "r3"}, 10, 0.5},
		{"cut off by k", []string{"r1", "r2", "r3"}, []string{"r1", "r2", "x", "y", "r3"}, 3, 2.0 / 3.0},
		{"shorter than k", []string{"r1", "r2"}, []string{"r1"}, 10, 0.5},
		{"duplicate hit counts once", []string{"r1", "r2"}, []string{"r1", "r1"}, 10, 0.5},
		{"nothing retrieved", []string{"r1"}, nil, 10, 0},
		{"nothing relevant", nil, []string{"r1"}, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RecallAtK(tt.relevant, tt.retrieved, tt.k), floatTolerance)
		})
	}
}

func TestMRRAtK(t *testing.T) {
	tests := []struct {
		name      string
		relevant  []string
		retrieved []string
		want      float64
	}{
		{"first result", []string{"r1"}, []string{"r1", "x"}, 1.0},
		{"third result", []string{"r1"}, []string{"x", "y", "r1"}, 1.0 / 3.0},
		{"earliest of several", []string{"r1", "r2", "r3"}, []string{"x", "r2", "r1"}, 0.5},
		{"beyond k", []string{"r1"}, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "r1"}, 0},
		{"nothing retrieved", []string{"r1"}, []string{}, 0},
		{"nothing relevant", []string{}, []string{"r1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MRRAtK(tt.relevant, tt.retrieved, 10), floatTolerance)
		})
	}
}

func TestNDCGAtK(t *testing.T) {
	// perfect ordering
	assert.InDelta(t, 1.0, NDCGAtK([]string{"r1", "r2"}, []string{"r2", "r1", "x"}, 10), floatTolerance)

	// single relevant record at rank 2
	assert.InDelta(t, 1.0/math.Log2(3), NDCGAtK([]string{"r1"}, []string{"x", "r1"}, 10), floatTolerance)

	// the ideal ranking is capped at k
	got := NDCGAtK([]string{"r1", "r2", "r3"}, []string{"r1", "x"}, 2)
	want := 1.0 / (1.0 + 1.0/math.Log2(3))
	assert.InDelta(t, want, got, floatTolerance)

	assert.Equal(t, 0.0, NDCGAtK(nil, []string{"r1"}, 10))
	assert.Equal(t, 0.0, NDCGAtK([]string{"r1"}, []string{"x"}, 10))
}
