package trees

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/armon/go-radix"
)

// DuplicateIndex stores a duplicate -> original mapping in a patricia tree so
// that the duplicates located under a directory can be found in O(k) of the
// prefix length instead of scanning the whole map.
type DuplicateIndex struct {
	tree      *radix.Tree                    // duplicate path -> original path
	originals map[string]map[string]struct{} // original -> duplicate set
	mu        sync.RWMutex
}

// NewDuplicateIndex builds an index from a duplicate -> original mapping.
// Entries mapping a path to itself are ignored.
func NewDuplicateIndex(dups map[string]string) *DuplicateIndex {
	idx := &DuplicateIndex{
		tree:      radix.New(),
		originals: make(map[string]map[string]struct{}),
	}
	for dup, orig := range dups {
		idx.insert(normalizePath(dup), normalizePath(orig))
	}
	return idx
}

// insert is called with the write lock held or during construction
func (idx *DuplicateIndex) insert(dup, orig string) {
	if dup == orig {
		return
	}
	if prev, updated := idx.tree.Insert(dup, orig); updated {
		idx.unlink(dup, prev.(string))
	}

	set, ok := idx.originals[orig]
	if !ok {
		set = make(map[string]struct{})
		idx.originals[orig] = set
	}
	set[dup] = struct{}{}
}

func (idx *DuplicateIndex) unlink(dup, orig string) {
	set := idx.originals[orig]
	delete(set, dup)
	if len(set) == 0 {
		delete(idx.originals, orig)
	}
}

// Original returns the original a duplicate path was matched to
func (idx *DuplicateIndex) Original(path string) (string, bool) {
	key := normalizePath(path)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	value, found := idx.tree.Get(key)
	if !found {
		return "", false
	}
	return value.(string), true
}

// Under returns the duplicates located at or below dir, with their
// originals. Originals themselves may live anywhere.
func (idx *DuplicateIndex) Under(dir string) map[string]string {
	prefix := normalizePath(dir)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string]string)

	if value, found := idx.tree.Get(prefix); found {
		out[prefix] = value.(string)
	}

	walkPrefix := prefix
	if !strings.HasSuffix(walkPrefix, "/") {
		walkPrefix += "/"
	}
	idx.tree.WalkPrefix(walkPrefix, func(key string, value interface{}) bool {
		out[key] = value.(string)
		return false // Continue walking
	})

	return out
}

// Groups returns every original with its sorted duplicates
func (idx *DuplicateIndex) Groups() map[string][]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string][]string, len(idx.originals))
	for orig, set := range idx.originals {
		dups := make([]string, 0, len(set))
		for dup := range set {
			dups = append(dups, dup)
		}
		sort.Strings(dups)
		out[orig] = dups
	}
	return out
}

// Remove drops a duplicate, e.g. once it has been deleted from disk
func (idx *DuplicateIndex) Remove(path string) bool {
	key := normalizePath(path)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	prev, deleted := idx.tree.Delete(key)
	if !deleted {
		return false
	}
	idx.unlink(key, prev.(string))
	return true
}

// Len returns the number of duplicates in the index
func (idx *DuplicateIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// normalizePath ensures consistent path formatting for the index
func normalizePath(path string) string {
	// First replace backslashes with forward slashes (for Windows paths)
	normalized := strings.ReplaceAll(path, "\\", "/")

	// Then clean the path to resolve . and .. elements
	normalized = filepath.ToSlash(filepath.Clean(normalized))

	// Remove trailing slash unless it's the root
	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = strings.TrimSuffix(normalized, "/")
	}

	return normalized
}
