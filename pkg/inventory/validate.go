package inventory

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// LinkLocalRule selects how the 169.254.0.0/16 exclusion is evaluated.
type LinkLocalRule string

const (
	// LinkLocalPair rejects an address only when the first octet is 169
	// and the second is 254.
	LinkLocalPair LinkLocalRule = "pair"

	// LinkLocalComponent rejects an address when the first octet is 169
	// or the second octet is 254. Older inventories were checked this
	// way, which also rejected hosts such as 10.254.0.1.
	LinkLocalComponent LinkLocalRule = "component"
)

// ParseLinkLocalRule parses a --link-local flag value.
func ParseLinkLocalRule(s string) (LinkLocalRule, error) {
	switch LinkLocalRule(s) {
	case "", LinkLocalPair:
		return LinkLocalPair, nil
	case LinkLocalComponent:
		return LinkLocalComponent, nil
	}
	return "", fmt.Errorf("unknown link-local rule %q (want %q or %q)", s, LinkLocalPair, LinkLocalComponent)
}

// Validator gates an inventory before any network I/O.
type Validator struct {
	LinkLocal LinkLocalRule

	// Exclude holds operator-supplied prefixes that must never be
	// contacted. Nil means no extra exclusions.
	Exclude *netipx.IPSet

	// Report is called once per address checked, with nil on pass.
	Report func(address string, err error)
}

// Check validates a single address.
func (v *Validator) Check(address string) error {
	o, err := util.ParseOctets(address)
	if err != nil {
		return util.NewInvalidAddressError(address, err.Error())
	}
	switch {
	case o[0] < 1 || o[0] > 223:
		return util.NewInvalidAddressError(address, fmt.Sprintf("first octet %d outside 1-223", o[0]))
	case o[0] == 127:
		return util.NewInvalidAddressError(address, "loopback range")
	case v.linkLocal(o):
		return util.NewInvalidAddressError(address, "link-local range")
	}
	if v.Exclude != nil && v.Exclude.Contains(util.OctetsToAddr(o)) {
		return util.NewInvalidAddressError(address, "inside an excluded prefix")
	}
	return nil
}

func (v *Validator) linkLocal(o [4]int) bool {
	if v.LinkLocal == LinkLocalComponent {
		return o[0] == 169 || o[1] == 254
	}
	return o[0] == 169 && o[1] == 254
}

// Validate checks addresses in order and stops at the first failure.
// There is no partial report: one bad address rejects the whole batch.
func (v *Validator) Validate(addresses []string) error {
	for _, a := range addresses {
		err := v.Check(a)
		if v.Report != nil {
			v.Report(a, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ParseExclusions builds an IP set from CIDR prefixes or bare addresses.
func ParseExclusions(entries []string) (*netipx.IPSet, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	var b netipx.IPSetBuilder
	for _, e := range entries {
		if p, err := netip.ParsePrefix(e); err == nil {
			b.AddPrefix(p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid exclusion %q: want CIDR or address", e)
		}
		b.Add(a)
	}
	return b.IPSet()
}
