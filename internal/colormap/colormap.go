// Package colormap maps arbitrary display colors onto the fixed category
// palette offered by external calendars.
package colormap

import (
	"strconv"
	"strings"
)

// DefaultColorID is returned when a display color cannot be parsed.
const DefaultColorID = "7"

// Entry is one palette color.
type Entry struct {
	ID  string
	Hex string
	r   int
	g   int
	b   int
}

// Palette is the external calendar event palette in enumeration order.
var Palette = mustPalette([][2]string{
	{"1", "#7986cb"},
	{"2", "#33b679"},
	{"3", "#8e24aa"},
	{"4", "#e67c73"},
	{"5", "#f6c026"},
	{"6", "#f5511d"},
	{"7", "#039be5"},
	{"8", "#616161"},
	{"9", "#3f51b5"},
	{"10", "#0b8043"},
	{"11", "#d50000"},
})

// MapToExternalColor returns the id of the palette entry nearest to hex in
// RGB space. Ties resolve to the earlier palette entry.
func MapToExternalColor(hex string) string {
	r, g, b, ok := ParseHex(hex)
	if !ok {
		return DefaultColorID
	}
	bestID := DefaultColorID
	bestDistance := -1
	for _, entry := range Palette {
		dr, dg, db := r-entry.r, g-entry.g, b-entry.b
		distance := dr*dr + dg*dg + db*db
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestID = entry.ID
		}
	}
	return bestID
}

// HexFor returns the palette hex for an id, or the default entry's hex.
func HexFor(id string) string {
	for _, entry := range Palette {
		if entry.ID == id {
			return entry.Hex
		}
	}
	return HexFor(DefaultColorID)
}

// ParseHex parses a 3 or 6 digit hex color with an optional leading '#'.
func ParseHex(hex string) (r, g, b int, ok bool) {
	value := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(value) == 3 {
		value = string([]byte{value[0], value[0], value[1], value[1], value[2], value[2]})
	}
	if len(value) != 6 {
		return 0, 0, 0, false
	}
	parsed, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(parsed >> 16 & 0xff), int(parsed >> 8 & 0xff), int(parsed & 0xff), true
}

func mustPalette(pairs [][2]string) []Entry {
	entries := make([]Entry, 0, len(pairs))
	for _, pair := range pairs {
		r, g, b, ok := ParseHex(pair[1])
		if !ok {
			panic("colormap: invalid palette color " + pair[1])
		}
		entries = append(entries, Entry{ID: pair[0], Hex: pair[1], r: r, g: g, b: b})
	}
	return entries
}
