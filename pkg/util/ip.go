package util

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ParseOctets splits a dotted-quad string into its four octets.
// Each token must be all digits and within [0,255]; no other IPv4
// spellings (hex, shortened forms, embedded whitespace) are accepted.
func ParseOctets(s string) ([4]int, error) {
	var octets [4]int
	tokens := strings.Split(s, ".")
	if len(tokens) != 4 {
		return octets, fmt.Errorf("expected 4 octets, got %d", len(tokens))
	}
	for i, tok := range tokens {
		if tok == "" || !isDigits(tok) {
			return octets, fmt.Errorf("octet %d (%q) is not numeric", i+1, tok)
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n > 255 {
			return octets, fmt.Errorf("octet %d (%s) out of range 0-255", i+1, tok)
		}
		octets[i] = n
	}
	return octets, nil
}

// OctetsToAddr converts parsed octets to a netip.Addr.
func OctetsToAddr(o [4]int) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(o[0]), byte(o[1]), byte(o[2]), byte(o[3])})
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
