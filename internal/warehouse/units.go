package warehouse

import "strings"

// unitSynonyms maps every historically-seen spelling onto one canonical unit.
// The mixed Indonesian/English forms come straight from legacy purchase data.
var unitSynonyms = map[string]string{
	"g":         "gram",
	"gr":        "gram",
	"gram":      "gram",
	"kg":        "kg",
	"kilo":      "kg",
	"kilogram":  "kg",
	"l":         "liter",
	"lt":        "liter",
	"liter":     "liter",
	"litre":     "liter",
	"ml":        "ml",
	"mililiter": "ml",
	"mill":      "ml",
	"pcs":       "pcs",
	"pc":        "pcs",
	"piece":     "pcs",
	"buah":      "pcs",
	"bh":        "pcs",
	"pack":      "pack",
	"pak":       "pack",
	"box":       "box",
	"dus":       "box",
}

// NormalizeUnit collapses a free-text unit into its canonical synonym. Unknown
// units are lower-cased and returned as-is so unseen families still compare
// consistently with themselves.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return ""
	}
	if canonical, ok := unitSynonyms[u]; ok {
		return canonical
	}
	return u
}

// SameUnit reports whether two raw unit strings normalize to the same family.
func SameUnit(a, b string) bool {
	return NormalizeUnit(a) == NormalizeUnit(b)
}
