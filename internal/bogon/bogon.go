// Package bogon classifies addresses from reserved, private or otherwise
// non-globally-routable ranges without a network round trip.
package bogon

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// defaultNetworks lists reserved IPv4 and IPv6 ranges, followed by the same
// IPv4 ranges as seen through 6to4 (2002::/16) and Teredo (2001::/32).
var defaultNetworks = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
	"::/128",
	"::1/128",
	"::ffff:0:0/96",
	"::/96",
	"100::/64",
	"2001:10::/28",
	"2001:db8::/32",
	"fc00::/7",
	"fe80::/10",
	"fec0::/10",
	"ff00::/8",
	"2002::/24",
	"2002:a00::/24",
	"2002:7f00::/24",
	"2002:a9fe::/32",
	"2002:ac10::/28",
	"2002:c000::/40",
	"2002:c000:200::/40",
	"2002:c0a8::/32",
	"2002:c612::/31",
	"2002:c633:6400::/40",
	"2002:cb00:7100::/40",
	"2002:e000::/20",
	"2002:f000::/20",
	"2002:ffff:ffff::/48",
	"2001::/40",
	"2001:0:a00::/40",
	"2001:0:7f00::/40",
	"2001:0:a9fe::/48",
	"2001:0:ac10::/44",
	"2001:0:c000::/56",
	"2001:0:c000:200::/56",
	"2001:0:c0a8::/48",
	"2001:0:c612::/47",
	"2001:0:c633:6400::/56",
	"2001:0:cb00:7100::/56",
	"2001:0:e000::/36",
	"2001:0:f000::/36",
	"2001:0:ffff:ffff::/64",
}

// DefaultPrefixes returns a copy of the built-in reserved range table.
func DefaultPrefixes() []netip.Prefix {
	out := make([]netip.Prefix, len(defaultNetworks))
	for i, s := range defaultNetworks {
		out[i] = netip.MustParsePrefix(s)
	}
	return out
}

// Classifier tests addresses against a fixed set of reserved prefixes.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	prefixes []netip.Prefix
	set      *netipx.IPSet
}

var defaultClassifier = func() *Classifier {
	c, err := New(DefaultPrefixes())
	if err != nil {
		panic(err)
	}
	return c
}()

// Default returns the classifier over the built-in table.
func Default() *Classifier { return defaultClassifier }

// New builds a classifier over the given prefixes. Prefixes are compared by
// their binary value, so every textual notation of an address agrees.
func New(prefixes []netip.Prefix) (*Classifier, error) {
	var b netipx.IPSetBuilder
	for _, p := range prefixes {
		if !p.IsValid() {
			return nil, fmt.Errorf("bogon: invalid prefix %v", p)
		}
		b.AddPrefix(p.Masked())
	}
	set, err := b.IPSet()
	if err != nil {
		return nil, fmt.Errorf("bogon: build set: %w", err)
	}
	return &Classifier{
		prefixes: append([]netip.Prefix(nil), prefixes...),
		set:      set,
	}, nil
}

// IsBogon reports whether address falls inside a reserved range. Addresses
// that do not parse are not bogons.
func (c *Classifier) IsBogon(address string) bool {
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}
	return c.Contains(ip)
}

// Contains reports whether ip falls inside a reserved range. IPv4-mapped
// IPv6 addresses are matched against the 128-bit table as-is.
func (c *Classifier) Contains(ip netip.Addr) bool {
	return c.set.Contains(ip.WithZone(""))
}

// Prefixes returns the table the classifier was built from.
func (c *Classifier) Prefixes() []netip.Prefix {
	return append([]netip.Prefix(nil), c.prefixes...)
}

// IsBogon reports whether address falls inside a built-in reserved range.
func IsBogon(address string) bool {
	return defaultClassifier.IsBogon(address)
}
