package director

import (
	"strconv"
	"strings"

	"github.com/dreamware/distmem/internal/wire"
)

// StripeDescriptor names one contiguous sub-range of a list variable's
// logical index space, and the Shard-local name holding it. Low/High are
// inclusive bounds within the LOGICAL list, not local offsets into the
// Shard's stored slice. For an Int variable there is exactly one
// descriptor with Low == High == 0 (the bounds are unused).
type StripeDescriptor struct {
	LocalName string
	Low       int
	High      int
}

// Len returns the number of logical positions this stripe covers.
func (d StripeDescriptor) Len() int {
	return d.High - d.Low + 1
}

// Handle is the Director-side opaque reference to a distributed variable:
// an ordered sequence of stripes plus the variable's Kind. Stripe order
// defines list ordering — stripe 0 holds the lowest indices, and so on.
// A Handle is "truthy" (live) while Stripes is non-empty; Free empties it.
type Handle struct {
	Stripes []StripeDescriptor
	Kind    wire.ValueKind
}

// Live reports whether h still references any stripes.
func (h *Handle) Live() bool {
	return len(h.Stripes) > 0
}

// shardOfLocalName recovers a LocalName's owning rank from its
// "<rank>-<counter>" prefix, with no table lookup needed — the encoding
// spec §3 calls out explicitly.
func shardOfLocalName(name string) (int, bool) {
	idx := strings.IndexByte(name, '-')
	if idx < 0 {
		return 0, false
	}
	rank, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, false
	}
	return rank, true
}

// findStripe returns the index into h.Stripes whose [Low, High] range
// contains the logical index, and the LOCAL (stripe-relative) index
// translated from first principles: the sum of the lengths of every
// preceding stripe. This resolves spec §9's open "-1" translation
// question by deriving the offset directly from stripe lengths rather
// than reproducing the reference implementation's inconsistent
// accumulator.
func findStripe(stripes []StripeDescriptor, index int) (stripeIdx int, localIdx int, ok bool) {
	accumulated := 0
	for i, s := range stripes {
		if index >= s.Low && index <= s.High {
			return i, index - accumulated, true
		}
		accumulated += s.Len()
	}
	return 0, 0, false
}
