package domain

import "sort"

// Resource is one of the fixed resource kinds a player can hold.
type Resource string

const (
	Funds Resource = "funds"
	Media Resource = "media"
	Clout Resource = "clout"
	Trust Resource = "trust"
)

// ResourceCap is the maximum number of resource units a player may hold in total.
const ResourceCap = 12

// ResourceOrder is the priority order for generic spending and the tie-break order when
// clamping overflow. Generic costs are paid from funds first; ties in the clamp discard
// from the kind that appears first here.
var ResourceOrder = [...]Resource{Funds, Media, Clout, Trust}

// IsKnown reports whether r is one of the fixed resource kinds.
func (r Resource) IsKnown() bool {
	for _, k := range ResourceOrder {
		if k == r {
			return true
		}
	}
	return false
}

// Bundle maps resource kinds to non-negative counts. A missing key counts as zero.
type Bundle map[Resource]int

// ClampResult is the outcome of ClampBundle.
type ClampResult struct {
	Bundle    Bundle
	Discarded Bundle
	Overflow  int
}

// Total returns the sum of all counts in the bundle.
func (b Bundle) Total() int {
	total := 0
	for _, v := range b {
		total += v
	}
	return total
}

// Clone returns a copy of the bundle with zero entries dropped.
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for k, v := range b {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

// Equal reports whether both bundles hold the same count of every kind.
func (b Bundle) Equal(other Bundle) bool {
	for k, v := range b {
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if b[k] != v {
			return false
		}
	}
	return true
}

// kinds lists the kinds present in b: the fixed order first, then any others by name.
func (b Bundle) kinds() []Resource {
	out := make([]Resource, 0, len(ResourceOrder)+len(b))
	out = append(out, ResourceOrder[:]...)
	var extra []Resource
	for k := range b {
		if !k.IsKnown() {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// AddBundles returns base + delta.
func AddBundles(base, delta Bundle) Bundle {
	out := base.Clone()
	for k, v := range delta {
		out[k] += v
	}
	return out.Clone()
}

// HasSufficient reports whether base covers every count in cost.
func HasSufficient(base, cost Bundle) bool {
	for k, v := range cost {
		if base[k] < v {
			return false
		}
	}
	return true
}

// SubtractBundle returns base - cost, or ErrInsufficientResources if any kind would go negative.
func SubtractBundle(base, cost Bundle) (Bundle, error) {
	if !HasSufficient(base, cost) {
		return nil, ErrInsufficientResources
	}
	out := base.Clone()
	for k, v := range cost {
		out[k] -= v
	}
	return out.Clone(), nil
}

// SpendGeneric deducts amount units following ResourceOrder.
func SpendGeneric(base Bundle, amount int) (Bundle, error) {
	if amount <= 0 {
		return base.Clone(), nil
	}
	if base.Total() < amount {
		return nil, ErrInsufficientResources
	}
	out, _ := drain(base, amount)
	return out, nil
}

// DrainGeneric removes up to amount units following ResourceOrder and reports what was removed.
// It never fails; a player holding less simply loses everything.
func DrainGeneric(base Bundle, amount int) (Bundle, Bundle) {
	return drain(base, amount)
}

func drain(base Bundle, amount int) (Bundle, Bundle) {
	out := base.Clone()
	removed := Bundle{}
	remaining := amount
	for _, k := range out.kinds() {
		if remaining <= 0 {
			break
		}
		available := out[k]
		if available <= 0 {
			continue
		}
		spend := min(available, remaining)
		out[k] = available - spend
		removed[k] += spend
		remaining -= spend
	}
	return out.Clone(), removed
}

// RemoveUpTo removes at most n units of r and returns the new bundle and the amount removed.
func RemoveUpTo(base Bundle, r Resource, n int) (Bundle, int) {
	out := base.Clone()
	removed := min(out[r], n)
	if removed <= 0 {
		return out, 0
	}
	out[r] -= removed
	return out.Clone(), removed
}

// ClampBundle enforces ResourceCap. While the total exceeds the cap, one unit is discarded from
// the kind currently held in the largest amount, ties broken by ResourceOrder. Overflow loss
// therefore lands on whatever the player is most stocked in.
func ClampBundle(b Bundle) ClampResult {
	out := b.Clone()
	total := out.Total()
	if total <= ResourceCap {
		return ClampResult{Bundle: out, Discarded: Bundle{}}
	}

	overflow := total - ResourceCap
	discarded := Bundle{}
	order := out.kinds()
	for i := 0; i < overflow; i++ {
		largest := order[0]
		for _, k := range order[1:] {
			if out[k] > out[largest] {
				largest = k
			}
		}
		out[largest]--
		discarded[largest]++
	}

	return ClampResult{Bundle: out.Clone(), Discarded: discarded, Overflow: overflow}
}
