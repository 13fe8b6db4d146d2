package geo

import "testing"

func TestNormalizeRegion_Regency(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"full prefix", "Kabupaten Garut", "GARUT"},
		{"dotted abbreviation", "KAB. GARUT", "GARUT"},
		{"bare abbreviation", "kab bandung barat", "BANDUNG BARAT"},
		{"kota prefix retained", "Kota Bandung", "KOTA BANDUNG"},
		{"no prefix", "Garut", "GARUT"},
		{"surrounding whitespace", "  Kabupaten   Garut  ", "GARUT"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRegion(tt.raw, Regency); got != tt.want {
				t.Errorf("NormalizeRegion(%q, Regency) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeRegion_District(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Kec. Tarogong Kidul", "TAROGONG KIDUL"},
		{"KEC CIBATU", "CIBATU"},
		{"Tarogong Kidul", "TAROGONG KIDUL"},
		// The regency prefix list does not apply at district level.
		{"Kabupaten Garut", "KABUPATEN GARUT"},
	}
	for _, tt := range tests {
		if got := NormalizeRegion(tt.raw, District); got != tt.want {
			t.Errorf("NormalizeRegion(%q, District) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeRegion_EqualKeysJoin(t *testing.T) {
	a := NormalizeRegion("Kabupaten Garut", Regency)
	b := NormalizeRegion("KAB. GARUT", Regency)
	if a != b || a != "GARUT" {
		t.Errorf("equivalent spellings must normalize identically: %q vs %q", a, b)
	}
}

func TestNormalizeRegion_StripsAtMostOnePrefix(t *testing.T) {
	if got := NormalizeRegion("KAB. KAB. GARUT", Regency); got != "KAB. GARUT" {
		t.Errorf("got %q, want exactly one prefix stripped", got)
	}
}
