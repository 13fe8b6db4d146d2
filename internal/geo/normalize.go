package geo

import "strings"

// RegionKind selects the prefix list applied during normalization.
type RegionKind int

const (
	Regency RegionKind = iota
	District
)

// Administrative prefixes stripped before key comparison. "KOTA" is never
// stripped: it is part of the proper name, unlike "KABUPATEN".
var (
	regencyPrefixes  = []string{"KABUPATEN ", "KAB. ", "KAB "}
	districtPrefixes = []string{"KEC. ", "KEC "}
)

// NormalizeRegion canonicalizes a free-text administrative name into a
// comparable join key: trim, upper-case, strip at most one matching prefix,
// collapse whitespace runs. Exact equality of normalized keys is the sole
// join condition against boundary features.
func NormalizeRegion(raw string, kind RegionKind) string {
	key := strings.ToUpper(strings.TrimSpace(raw))

	prefixes := regencyPrefixes
	if kind == District {
		prefixes = districtPrefixes
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			key = key[len(p):]
			break
		}
	}

	return strings.Join(strings.Fields(key), " ")
}

// NormalizeRegency is shorthand for regency-level names.
func NormalizeRegency(raw string) string { return NormalizeRegion(raw, Regency) }

// NormalizeDistrict is shorthand for district-level names.
func NormalizeDistrict(raw string) string { return NormalizeRegion(raw, District) }
