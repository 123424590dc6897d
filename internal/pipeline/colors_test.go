package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#FF00FF", "Magenta"},
		{"#FF0000", "Red"},
		{"#000000", "Black"},
		{"#FFFFFF", "White"},
		{"#FE01FE", "Magenta"}, // near-miss snaps to the closest name
		{"#012345", "Navy"},
		{"sky blue", "sky blue"}, // non-hex passes through
		{"", ""},
		{"#ZZZZZZ", "#ZZZZZZ"},
		{"#FFF", "#FFF"}, // short form is not supported
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColorName(tt.in), "input %q", tt.in)
	}
}
