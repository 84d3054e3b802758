package asl

import "strconv"

// AliasProvider hands out unique query aliases by appending a per-prefix
// counter: s_0, s_1, p_eq_0.
type AliasProvider struct {
	counters map[string]int
}

// NewAliasProvider returns an empty provider.
func NewAliasProvider() *AliasProvider {
	return &AliasProvider{counters: make(map[string]int)}
}

// UniqueAlias returns prefix_N with the next free N for prefix.
func (p *AliasProvider) UniqueAlias(prefix string) string {
	n := p.counters[prefix]
	p.counters[prefix] = n + 1
	return prefix + "_" + strconv.Itoa(n)
}

// Count returns the number of aliases handed out.
func (p *AliasProvider) Count() int {
	total := 0
	for _, n := range p.counters {
		total += n
	}
	return total
}
