package countryingest

// CodeAssigner hands out a country code per call, preferring one not
// yet claimed, scanning a tag set's ISO3166 keys in priority order and falling back to a
// shared "XX" bucket exactly as the upstream OSM relations do when
// no code is tagged (spec.md §4.4, C4).
type CodeAssigner struct {
	used map[string]bool
}

// NewCodeAssigner returns a fresh assigner with no codes claimed yet.
func NewCodeAssigner() *CodeAssigner {
	return &CodeAssigner{used: make(map[string]bool)}
}

var isoTagPriority = []string{
	"ISO3166-2",
	"ISO3166-1",
	"ISO3166-1:alpha2",
	"ISO3166-1:alpha3",
}

// Unique returns the first unclaimed ISO3166 code found in tags, in
// priority order. If every tagged candidate is already claimed by an
// earlier country, it retries allowing reuse (so a second pass never
// fails to find a value), and if tags carry no usable code at all it
// returns the literal fallback "XX".
func (a *CodeAssigner) Unique(tags map[string]string) string {
	for _, checkUsed := range []bool{true, false} {
		for _, key := range isoTagPriority {
			code := tags[key]
			if len(code) < 2 {
				continue
			}
			if checkUsed && a.used[code] {
				continue
			}
			a.used[code] = true
			return code
		}
	}
	return "XX"
}
