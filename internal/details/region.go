package details

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const flagURLPattern = "https://cdn.ipinfo.io/static/images/countries-flags/%s.svg"

// euMembers lists EU member states as of 2020-02-01.
var euMembers = []string{
	"AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "ES", "FI", "FR", "GR", "HR", "HU",
	"IE", "IT", "LT", "LU", "LV", "MT", "NL", "PL", "PT", "RO", "SE", "SI", "SK",
}

// continentGroups maps UN M.49 groupings onto continent codes. Order matters:
// the Americas are split before the broader groups are tried.
var continentGroups = []struct {
	region    string
	continent Continent
}{
	{"005", Continent{"SA", "South America"}},
	{"003", Continent{"NA", "North America"}},
	{"002", Continent{"AF", "Africa"}},
	{"142", Continent{"AS", "Asia"}},
	{"150", Continent{"EU", "Europe"}},
	{"009", Continent{"OC", "Oceania"}},
}

var regionNames = display.English.Regions()

// flagFor builds the regional-indicator emoji for a two-letter code.
func flagFor(code string) (Flag, bool) {
	if len(code) != 2 {
		return Flag{}, false
	}
	var emoji strings.Builder
	points := make([]string, 0, 2)
	for _, c := range strings.ToUpper(code) {
		if c < 'A' || c > 'Z' {
			return Flag{}, false
		}
		r := 0x1F1E6 + (c - 'A')
		emoji.WriteRune(r)
		points = append(points, fmt.Sprintf("U+%X", r))
	}
	return Flag{Emoji: emoji.String(), Unicode: strings.Join(points, " ")}, true
}

func flagURL(code string) string {
	return fmt.Sprintf(flagURLPattern, code)
}

func parseRegion(code string) (language.Region, bool) {
	r, err := language.ParseRegion(code)
	if err != nil || !r.IsCountry() {
		return language.Region{}, false
	}
	return r, true
}

func countryName(code string) string {
	r, ok := parseRegion(code)
	if !ok {
		return ""
	}
	return regionNames.Name(r)
}

func currencyFor(code string) (Currency, bool) {
	r, ok := parseRegion(code)
	if !ok {
		return Currency{}, false
	}
	unit, ok := currency.FromRegion(r)
	if !ok {
		return Currency{}, false
	}
	return Currency{Code: unit.String()}, true
}

func continentFor(code string) (Continent, bool) {
	if code == "AQ" {
		return Continent{"AN", "Antarctica"}, true
	}
	r, ok := parseRegion(code)
	if !ok {
		return Continent{}, false
	}
	for _, g := range continentGroups {
		if language.MustParseRegion(g.region).Contains(r) {
			return g.continent, true
		}
	}
	return Continent{}, false
}
