package details

import (
	"os"
	"path/filepath"
	"testing"

	ipscope "github.com/eugener/ipscope/internal"
)

const standardPayload = `{
	"ip": "8.8.8.8",
	"hostname": "dns.google",
	"anycast": true,
	"city": "Mountain View",
	"region": "California",
	"country": "US",
	"loc": "37.4056,-122.0775",
	"org": "AS15169 Google LLC",
	"postal": "94043",
	"timezone": "America/Los_Angeles"
}`

func TestFormat_Standard(t *testing.T) {
	t.Parallel()
	d, err := NewFormatter(nil).Format("8.8.8.8", ipscope.Value(standardPayload))
	if err != nil {
		t.Fatal(err)
	}

	if d.IP != "8.8.8.8" || d.Hostname != "dns.google" || !d.Anycast {
		t.Errorf("basic fields = %+v", d)
	}
	if d.CountryCode != "US" {
		t.Errorf("country code = %q, want US", d.CountryCode)
	}
	if d.CountryName != "United States" {
		t.Errorf("country name = %q, want United States", d.CountryName)
	}
	if d.IsEU {
		t.Error("US should not be EU")
	}
	if d.CountryFlag == nil || d.CountryFlag.Emoji != "🇺🇸" || d.CountryFlag.Unicode != "U+1F1FA U+1F1F8" {
		t.Errorf("flag = %+v", d.CountryFlag)
	}
	if d.CountryFlagURL != "https://cdn.ipinfo.io/static/images/countries-flags/US.svg" {
		t.Errorf("flag url = %q", d.CountryFlagURL)
	}
	if d.CountryCurrency == nil || d.CountryCurrency.Code != "USD" {
		t.Errorf("currency = %+v", d.CountryCurrency)
	}
	if d.Continent == nil || d.Continent.Code != "NA" {
		t.Errorf("continent = %+v", d.Continent)
	}
	if d.Latitude == nil || *d.Latitude != 37.4056 || d.Longitude == nil || *d.Longitude != -122.0775 {
		t.Errorf("coordinates = %v, %v", d.Latitude, d.Longitude)
	}
	if d.All["postal"] != "94043" {
		t.Errorf("all = %v", d.All)
	}
}

func TestFormat_RewritesRequestedNotation(t *testing.T) {
	t.Parallel()
	raw := ipscope.Value(`{"ip":"2001:db8::1","country":"DE"}`)
	d, err := NewFormatter(nil).Format("2001:DB8:0:0:0:0:0:1", raw)
	if err != nil {
		t.Fatal(err)
	}
	if d.IP != "2001:DB8:0:0:0:0:0:1" {
		t.Errorf("ip = %q, want requested notation", d.IP)
	}
	if d.All["ip"] != "2001:DB8:0:0:0:0:0:1" {
		t.Errorf("all[ip] = %v", d.All["ip"])
	}
	if !d.IsEU {
		t.Error("DE should be EU")
	}
	if d.Continent == nil || d.Continent.Code != "EU" {
		t.Errorf("continent = %+v", d.Continent)
	}
}

func TestFormat_Core(t *testing.T) {
	t.Parallel()
	raw := ipscope.Value(`{
		"ip": "1.1.1.1",
		"geo": {"city": "Brisbane", "country": "Australia", "country_code": "AU",
			"latitude": -27.4679, "longitude": 153.0281},
		"as": {"asn": "AS13335", "name": "Cloudflare, Inc.", "domain": "cloudflare.com", "type": "hosting"},
		"is_anycast": true
	}`)
	d, err := NewFormatter(nil).Format("1.1.1.1", raw)
	if err != nil {
		t.Fatal(err)
	}
	if d.City != "Brisbane" || d.CountryCode != "AU" || d.Country != "Australia" {
		t.Errorf("geo fields = %+v", d)
	}
	if d.Latitude == nil || *d.Latitude != -27.4679 {
		t.Errorf("latitude = %v", d.Latitude)
	}
	if d.ASN == nil || d.ASN.ASN != "AS13335" || d.ASN.Type != "hosting" {
		t.Errorf("asn = %+v", d.ASN)
	}
	if !d.Anycast {
		t.Error("anycast should be set from is_anycast")
	}
	if d.Continent == nil || d.Continent.Code != "OC" {
		t.Errorf("continent = %+v", d.Continent)
	}
}

func TestFormat_Lite(t *testing.T) {
	t.Parallel()
	raw := ipscope.Value(`{"ip":"8.8.8.8","asn":"AS15169","as_name":"Google LLC","as_domain":"google.com",
		"country_code":"US","country":"United States","continent_code":"NA","continent":"North America"}`)
	d, err := NewFormatter(nil).Format("8.8.8.8", raw)
	if err != nil {
		t.Fatal(err)
	}
	if d.ASN == nil || d.ASN.ASN != "AS15169" || d.ASN.Name != "Google LLC" {
		t.Errorf("asn = %+v", d.ASN)
	}
	if d.CountryCode != "US" {
		t.Errorf("country code = %q", d.CountryCode)
	}
	if d.Latitude != nil {
		t.Errorf("latitude = %v, want nil", *d.Latitude)
	}
}

func TestFormat_Bogon(t *testing.T) {
	t.Parallel()
	d, err := NewFormatter(nil).Format("10.0.0.1", ipscope.Value(`{"ip":"10.0.0.1","bogon":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if !d.Bogon || d.CountryCode != "" || d.CountryFlag != nil {
		t.Errorf("bogon details = %+v", d)
	}
}

func TestFormat_Invalid(t *testing.T) {
	t.Parallel()
	f := NewFormatter(nil)
	for _, raw := range []string{`not json`, `null`, `"string"`} {
		if _, err := f.Format("8.8.8.8", ipscope.Value(raw)); err == nil {
			t.Errorf("Format(%s) should fail", raw)
		}
	}
}

func TestFormat_TablesOverride(t *testing.T) {
	t.Parallel()
	f := NewFormatter(&Tables{
		Countries:  map[string]string{"US": "USA"},
		Currencies: map[string]Currency{"US": {Code: "USD", Symbol: "$"}},
		EU:         []string{"US"},
	})
	d, err := f.Format("8.8.8.8", ipscope.Value(standardPayload))
	if err != nil {
		t.Fatal(err)
	}
	if d.CountryName != "USA" {
		t.Errorf("country name = %q, want USA", d.CountryName)
	}
	if d.CountryCurrency.Symbol != "$" {
		t.Errorf("currency = %+v", d.CountryCurrency)
	}
	if !d.IsEU {
		t.Error("EU table should override the built-in list")
	}
}

func TestFlagFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code    string
		unicode string
		ok      bool
	}{
		{"US", "U+1F1FA U+1F1F8", true},
		{"de", "U+1F1E9 U+1F1EA", true},
		{"USA", "", false},
		{"1A", "", false},
	}
	for _, tt := range tests {
		fl, ok := flagFor(tt.code)
		if ok != tt.ok || fl.Unicode != tt.unicode {
			t.Errorf("flagFor(%q) = %+v, %v", tt.code, fl, ok)
		}
	}
}

func TestLoadTables(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	countries := filepath.Join(dir, "countries.json")
	eu := filepath.Join(dir, "eu.json")
	if err := os.WriteFile(countries, []byte(`{"US":"United States","FR":"France"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(eu, []byte(`["FR"]`), 0o600); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadTables(TablePaths{Countries: countries, EU: eu})
	if err != nil {
		t.Fatal(err)
	}
	if tables.Countries["FR"] != "France" || len(tables.EU) != 1 {
		t.Errorf("tables = %+v", tables)
	}
	if tables.Flags != nil {
		t.Error("unset table should stay nil")
	}

	if _, err := LoadTables(TablePaths{Countries: filepath.Join(dir, "missing.json")}); err == nil {
		t.Error("missing file should fail")
	}
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{`), 0o600)
	if _, err := LoadTables(TablePaths{Flags: bad}); err == nil {
		t.Error("malformed file should fail")
	}
}
