package scanner

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/dupfs/dupfs/config"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/fingerprint"
)

// OriginalPolicy decides which member of a duplicate group is the original.
type OriginalPolicy int

const (
	// PolicyLexical picks the lexicographically smallest path of each group
	// once the scan has drained. Output is reproducible across runs.
	PolicyLexical OriginalPolicy = iota
	// PolicyFirstSeen keeps whichever path won the check-and-set race.
	PolicyFirstSeen
)

func (p OriginalPolicy) String() string {
	switch p {
	case PolicyLexical:
		return config.PolicyLexical
	case PolicyFirstSeen:
		return config.PolicyFirstSeen
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a config value to an OriginalPolicy.
func ParsePolicy(s string) (OriginalPolicy, error) {
	switch s {
	case config.PolicyLexical, "":
		return PolicyLexical, nil
	case config.PolicyFirstSeen:
		return PolicyFirstSeen, nil
	default:
		return 0, fmt.Errorf("unknown original policy %q", s)
	}
}

// SeenIndex maps each fingerprint to the first path that claimed it.
// It is owned by a single scan and guarded by one mutex so that Claim is
// an indivisible check-and-set.
type SeenIndex struct {
	mu        sync.Mutex
	originals map[fingerprint.Fingerprint]string
	members   map[fingerprint.Fingerprint][]string
}

// NewSeenIndex creates an empty index.
func NewSeenIndex() *SeenIndex {
	return &SeenIndex{
		originals: make(map[fingerprint.Fingerprint]string),
		members:   make(map[fingerprint.Fingerprint][]string),
	}
}

// Claim records path under fp. If fp is new, path becomes its original and
// duplicate is false. Otherwise the existing original is returned, duplicate
// is true, and the original is left untouched.
func (idx *SeenIndex) Claim(fp fingerprint.Fingerprint, path string) (original string, duplicate bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.members[fp] = append(idx.members[fp], path)

	if existing, ok := idx.originals[fp]; ok {
		return existing, true
	}
	idx.originals[fp] = path
	return path, false
}

// Original returns the committed original for fp.
func (idx *SeenIndex) Original(fp fingerprint.Fingerprint) (string, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	path, ok := idx.originals[fp]
	return path, ok
}

// Len returns the number of distinct fingerprints seen.
func (idx *SeenIndex) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.originals)
}

// Resolve groups every fingerprint with more than one member and assigns
// the original according to policy. Groups are ordered by original path
// and duplicates within a group are sorted.
func (idx *SeenIndex) Resolve(policy OriginalPolicy) []Group {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	groups := make([]Group, 0)
	for fp, members := range idx.members {
		if len(members) < 2 {
			continue
		}

		sorted := slices.Clone(members)
		sort.Strings(sorted)

		original := sorted[0]
		if policy == PolicyFirstSeen {
			original = idx.originals[fp]
		}

		dups := make([]string, 0, len(sorted)-1)
		for _, p := range sorted {
			if p != original {
				dups = append(dups, p)
			}
		}

		groups = append(groups, Group{
			Fingerprint: fp.String(),
			Original:    original,
			Duplicates:  dups,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Original < groups[j].Original })
	return groups
}
