package reconcile

import (
	"math/big"
	"regexp"
	"strings"

	"customsdesk/internal/domain"
)

// measureRe matches "<number> <unit>" or "<unit> <number>"; the unit is optional.
var measureRe = regexp.MustCompile(`^(?:([A-Za-z]+)\s*)?([-+]?(?:\d[\d,]*)?(?:\.\d+)?)\s*([A-Za-z][A-Za-z0-9]*)?$`)

var groupedRe = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})*(\.\d+)?$`)

var unitAliases = map[string]string{
	"KG": "KG", "KGS": "KG", "KILO": "KG", "KILOS": "KG", "KILOGRAM": "KG", "KILOGRAMS": "KG",
	"LB": "LB", "LBS": "LB", "POUND": "LB", "POUNDS": "LB",
	"MT": "MT", "TON": "MT", "TONS": "MT", "TONNE": "MT", "TONNES": "MT",
	"CBM": "CBM", "M3": "CBM",
	"PC": "PCS", "PCS": "PCS", "PIECE": "PCS", "PIECES": "PCS",
	"CTN": "CTN", "CTNS": "CTN", "CARTON": "CTN", "CARTONS": "CTN",
	"PKG": "PKG", "PKGS": "PKG", "PACKAGE": "PKG", "PACKAGES": "PKG",
}

// NormalizeText trims surrounding whitespace. Comparison stays case-sensitive.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeMeasure canonicalizes a numeric value with an optional unit, so
// "1,200.50 kgs" and "1200.5 KG" normalize identically. ok is false when the
// value is not a recognizable measure.
func NormalizeMeasure(s string) (normalized string, ok bool) {
	m := measureRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	prefix, number, suffix := m[1], m[2], m[3]
	if number == "" || (prefix != "" && suffix != "") {
		return "", false
	}
	if strings.Contains(number, ",") {
		if !groupedRe.MatchString(number) {
			return "", false
		}
		number = strings.ReplaceAll(number, ",", "")
	}
	r, ok := new(big.Rat).SetString(number)
	if !ok {
		return "", false
	}
	unit := strings.ToUpper(prefix + suffix)
	if alias, found := unitAliases[unit]; found {
		unit = alias
	}
	if unit == "" {
		return r.RatString(), true
	}
	return r.RatString() + " " + unit, true
}

// Equivalent reports whether two values of the given kind are equal under the
// comparison policy: exact match after normalization, no numeric tolerance.
func Equivalent(kind domain.FieldKind, a, b string) bool {
	if kind == domain.KindMeasure {
		na, okA := NormalizeMeasure(a)
		nb, okB := NormalizeMeasure(b)
		if okA && okB {
			return na == nb
		}
	}
	return NormalizeText(a) == NormalizeText(b)
}
