package core

import (
	"strconv"
	"strings"
)

// NormalizeColor ensures a hex color string carries a leading '#'.
func NormalizeColor(c string) string {
	if !strings.HasPrefix(c, "#") {
		return "#" + c
	}
	return c
}

// DeriveTextColor picks a contrasting text color for the given hex
// background color using the perceived-brightness formula
// 0.2126R + 0.7152G + 0.0722B. Dark backgrounds get white text, light
// backgrounds black. Colors that are not 3 or 6 hex digits fall back
// to white.
func DeriveTextColor(hexColor string) string {
	c := strings.TrimPrefix(hexColor, "#")

	var r, g, b int64
	switch len(c) {
	case 3:
		d := make([]int64, 3)
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseInt(c[i:i+1], 16, 64)
			if err != nil {
				return "#ffffff"
			}
			d[i] = v * 17 // expand shorthand digit, e.g. "a" -> 0xaa
		}
		r, g, b = d[0], d[1], d[2]

	case 6:
		d := make([]int64, 3)
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseInt(c[i*2:i*2+2], 16, 64)
			if err != nil {
				return "#ffffff"
			}
			d[i] = v
		}
		r, g, b = d[0], d[1], d[2]

	default:
		return "#ffffff"
	}

	if 0.2126*float64(r)+0.7152*float64(g)+0.0722*float64(b) <= 128 {
		return "#ffffff"
	}
	return "#000000"
}
