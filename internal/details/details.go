// Package details turns raw lookup payloads into typed, enriched records.
package details

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	ipscope "github.com/eugener/ipscope/internal"
)

// ASN describes the autonomous system an address belongs to.
type ASN struct {
	ASN    string `json:"asn"`
	Name   string `json:"name,omitempty"`
	Domain string `json:"domain,omitempty"`
	Route  string `json:"route,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Details is the formatted view of one lookup. All carries the full payload,
// including fields with no typed counterpart.
type Details struct {
	IP              string         `json:"ip"`
	Hostname        string         `json:"hostname,omitempty"`
	City            string         `json:"city,omitempty"`
	Region          string         `json:"region,omitempty"`
	Country         string         `json:"country,omitempty"`
	CountryCode     string         `json:"country_code,omitempty"`
	CountryName     string         `json:"country_name,omitempty"`
	IsEU            bool           `json:"is_eu"`
	CountryFlag     *Flag          `json:"country_flag,omitempty"`
	CountryFlagURL  string         `json:"country_flag_url,omitempty"`
	CountryCurrency *Currency      `json:"country_currency,omitempty"`
	Continent       *Continent     `json:"continent,omitempty"`
	Loc             string         `json:"loc,omitempty"`
	Latitude        *float64       `json:"latitude,omitempty"`
	Longitude       *float64       `json:"longitude,omitempty"`
	Postal          string         `json:"postal,omitempty"`
	Timezone        string         `json:"timezone,omitempty"`
	Org             string         `json:"org,omitempty"`
	ASN             *ASN           `json:"asn,omitempty"`
	Anycast         bool           `json:"anycast,omitempty"`
	Bogon           bool           `json:"bogon,omitempty"`
	All             map[string]any `json:"all"`
}

// Formatter enriches raw payloads with country metadata. Reference tables
// take precedence over the built-in CLDR data.
type Formatter struct {
	tables Tables
}

// NewFormatter creates a Formatter. tables may be nil.
func NewFormatter(tables *Tables) *Formatter {
	f := &Formatter{}
	if tables != nil {
		f.tables = *tables
	}
	if f.tables.EU == nil {
		f.tables.EU = euMembers
	}
	return f
}

// Format builds Details from raw. When requested is an IP address, the
// payload's ip field is rewritten to it so a value cached under another
// notation of the same address reads back as asked.
func (f *Formatter) Format(requested string, raw ipscope.Value) (*Details, error) {
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("format details: %w", err)
	}
	if all == nil {
		return nil, fmt.Errorf("format details: %w: payload is not an object", ipscope.ErrUpstream)
	}
	if _, err := netip.ParseAddr(requested); err == nil {
		all["ip"] = requested
	}

	d := &Details{
		IP:       str(all["ip"]),
		Hostname: gjson.GetBytes(raw, "hostname").String(),
		City:     first(raw, "city", "geo.city"),
		Region:   first(raw, "region", "geo.region"),
		Country:  first(raw, "country", "geo.country"),
		Loc:      gjson.GetBytes(raw, "loc").String(),
		Postal:   first(raw, "postal", "geo.postal_code"),
		Timezone: first(raw, "timezone", "geo.timezone"),
		Org:      gjson.GetBytes(raw, "org").String(),
		Anycast:  gjson.GetBytes(raw, "anycast").Bool() || gjson.GetBytes(raw, "is_anycast").Bool(),
		Bogon:    gjson.GetBytes(raw, "bogon").Bool(),
		ASN:      asnOf(raw),
		All:      all,
	}
	d.Latitude, d.Longitude = coordinates(raw)

	code := countryCode(raw)
	if code == "" {
		return d, nil
	}
	d.CountryCode = code
	d.CountryName = f.countryName(code)
	d.IsEU = slices.Contains(f.tables.EU, code)
	d.CountryFlagURL = flagURL(code)
	if fl, ok := f.flag(code); ok {
		d.CountryFlag = &fl
	}
	if c, ok := f.currency(code); ok {
		d.CountryCurrency = &c
	}
	if c, ok := f.continent(code); ok {
		d.Continent = &c
	}
	return d, nil
}

func (f *Formatter) countryName(code string) string {
	if name, ok := f.tables.Countries[code]; ok {
		return name
	}
	return countryName(code)
}

func (f *Formatter) flag(code string) (Flag, bool) {
	if fl, ok := f.tables.Flags[code]; ok {
		return fl, true
	}
	return flagFor(code)
}

func (f *Formatter) currency(code string) (Currency, bool) {
	if c, ok := f.tables.Currencies[code]; ok {
		return c, true
	}
	return currencyFor(code)
}

func (f *Formatter) continent(code string) (Continent, bool) {
	if c, ok := f.tables.Continents[code]; ok {
		return c, true
	}
	return continentFor(code)
}

// countryCode finds the ISO code across payload shapes: lite puts it in
// country_code, core and plus under geo, and the standard edition in country.
func countryCode(raw []byte) string {
	if c := first(raw, "country_code", "geo.country_code"); c != "" {
		return strings.ToUpper(c)
	}
	if c := gjson.GetBytes(raw, "country").String(); len(c) == 2 {
		return strings.ToUpper(c)
	}
	return ""
}

// coordinates reads "lat,lon" from loc, falling back to geo.latitude and
// geo.longitude.
func coordinates(raw []byte) (lat, lon *float64) {
	if loc := gjson.GetBytes(raw, "loc").String(); loc != "" {
		latStr, lonStr, ok := strings.Cut(loc, ",")
		if !ok {
			return nil, nil
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		lo, err2 := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err1 != nil || err2 != nil {
			return nil, nil
		}
		return &la, &lo
	}
	la, lo := gjson.GetBytes(raw, "geo.latitude"), gjson.GetBytes(raw, "geo.longitude")
	if la.Type != gjson.Number || lo.Type != gjson.Number {
		return nil, nil
	}
	laF, loF := la.Float(), lo.Float()
	return &laF, &loF
}

// asnOf reads the autonomous system from the "as" object (core, plus), the
// "asn" object (standard), or the flat asn/as_name/as_domain fields (lite).
func asnOf(raw []byte) *ASN {
	for _, path := range []string{"as", "asn"} {
		if obj := gjson.GetBytes(raw, path); obj.IsObject() {
			return &ASN{
				ASN:    obj.Get("asn").String(),
				Name:   obj.Get("name").String(),
				Domain: obj.Get("domain").String(),
				Route:  obj.Get("route").String(),
				Type:   obj.Get("type").String(),
			}
		}
	}
	if asn := gjson.GetBytes(raw, "asn"); asn.Type == gjson.String {
		return &ASN{
			ASN:    asn.String(),
			Name:   gjson.GetBytes(raw, "as_name").String(),
			Domain: gjson.GetBytes(raw, "as_domain").String(),
		}
	}
	return nil
}

func first(raw []byte, paths ...string) string {
	for _, r := range gjson.GetManyBytes(raw, paths...) {
		if s := r.String(); s != "" {
			return s
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
