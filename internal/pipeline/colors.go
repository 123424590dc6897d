package pipeline

import (
	"math"
	"strconv"
	"strings"
)

// namedColors maps display names to sRGB values. Prompts carry the nearest
// name instead of a hex code so the text model writes prose, not markup.
var namedColors = []struct {
	Name    string
	R, G, B int
}{
	{"Red", 255, 0, 0},
	{"Orange", 255, 165, 0},
	{"Yellow", 255, 255, 0},
	{"Green", 0, 128, 0},
	{"Lime", 0, 255, 0},
	{"Teal", 0, 128, 128},
	{"Cyan", 0, 255, 255},
	{"Blue", 0, 0, 255},
	{"Navy", 0, 0, 128},
	{"Purple", 128, 0, 128},
	{"Magenta", 255, 0, 255},
	{"Pink", 255, 192, 203},
	{"Brown", 139, 69, 19},
	{"Gold", 255, 215, 0},
	{"Silver", 192, 192, 192},
	{"Gray", 128, 128, 128},
	{"Black", 0, 0, 0},
	{"White", 255, 255, 255},
	{"Turquoise", 64, 224, 208},
	{"Lavender", 230, 230, 250},
	{"Coral", 255, 127, 80},
	{"Maroon", 128, 0, 0},
	{"Olive", 128, 128, 0},
	{"Indigo", 75, 0, 130},
}

// ColorName resolves a "#RRGGBB" value to the nearest named color. Values
// that are not hex codes pass through unchanged, so clients may already
// send names.
func ColorName(value string) string {
	r, g, b, ok := parseHexColor(value)
	if !ok {
		return value
	}

	best := namedColors[0].Name
	bestDist := math.MaxFloat64
	for _, c := range namedColors {
		dr, dg, db := float64(r-c.R), float64(g-c.G), float64(b-c.B)
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			bestDist = dist
			best = c.Name
		}
	}
	return best
}

func parseHexColor(value string) (r, g, b int, ok bool) {
	v := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(v) != 6 {
		return 0, 0, 0, false
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(n >> 16 & 0xFF), int(n >> 8 & 0xFF), int(n & 0xFF), true
}
