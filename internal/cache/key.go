package cache

import (
	"net/netip"
	"strings"
)

// keySeparators split the address token from an opaque suffix: '_' precedes
// the version tag and '/' a field selector such as "8.8.8.8/hostname".
const keySeparators = "_/"

// reservedChars cannot appear in stored keys and are replaced by keyPlaceholder.
const (
	reservedChars  = "{}()/\\@:"
	keyPlaceholder = "^"
)

var keyReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(reservedChars))
	for _, c := range reservedChars {
		pairs = append(pairs, string(c), keyPlaceholder)
	}
	return strings.NewReplacer(pairs...)
}()

// NormalizeKey maps a raw lookup key to its storage key. Notations of the
// same IP address collapse to one key; suffixes are preserved verbatim, so
// "2001:DB8::1_v1" and "2001:db8:0:0:0:0:0:1_v1" collide while "_v1" and
// "_v2" variants stay apart. Malformed input degrades to sanitized identity.
func NormalizeKey(raw string) string {
	return keyReplacer.Replace(CanonicalAddress(raw))
}

// CanonicalAddress rewrites the address token of raw into canonical form
// without sanitizing reserved characters.
func CanonicalAddress(raw string) string {
	addr, suffix := splitKey(raw)
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return raw
	}
	return ip.String() + suffix
}

// splitKey splits raw at the first separator. The suffix keeps the separator.
func splitKey(raw string) (addr, suffix string) {
	if i := strings.IndexAny(raw, keySeparators); i >= 0 {
		return raw[:i], raw[i:]
	}
	return raw, ""
}
