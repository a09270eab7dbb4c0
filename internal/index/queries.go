package index

// HashToAnyPath maps every hash to the first path carrying it in sorted
// order, which makes the representative of a duplicate set stable.
func (idx *Index) HashToAnyPath() map[string]string {
	out := make(map[string]string)
	for _, e := range idx.entries.Items() {
		if !e.HasHash() {
			continue
		}
		if _, seen := out[e.Hash]; !seen {
			out[e.Hash] = e.Path
		}
	}
	return out
}

// HashSet returns the distinct hash values.
func (idx *Index) HashSet() map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range idx.entries.Items() {
		if e.HasHash() {
			out[e.Hash] = struct{}{}
		}
	}
	return out
}

// HashEntryCount returns how many entries carry a hash.
func (idx *Index) HashEntryCount() int {
	n := 0
	for _, e := range idx.entries.Items() {
		if e.HasHash() {
			n++
		}
	}
	return n
}

// HashCoverage returns the fraction of hashed entries, 0 for an empty index.
func (idx *Index) HashCoverage() float64 {
	total := idx.EntryCount()
	if total == 0 {
		return 0
	}
	return float64(idx.HashEntryCount()) / float64(total)
}
