package bplus

import (
	"fmt"

	"minidb/types"
)

/*
Search path and the shared positioning helpers. The internal-node key
convention follows the classic form: for key K at position i, child i holds
keys strictly below K and child i+1 holds keys greater or equal.
*/

// childIndex returns which child to descend into for key: the number of
// node keys less than or equal to key.
func childIndex(keys []types.TKey, key types.TKey) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if keys[mid].Compare(key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// lowerBound returns the first position whose key is >= key.
func lowerBound(keys []types.TKey, key types.TKey) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if keys[mid].Compare(key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findKey returns the position of key, or -1.
func findKey(keys []types.TKey, key types.TKey) int {
	pos := lowerBound(keys, key)
	if pos < len(keys) && keys[pos].Compare(key) == 0 {
		return pos
	}
	return -1
}

// insertKey inserts elem at position i.
func insertKey(keys []types.TKey, i int, elem types.TKey) []types.TKey {
	keys = append(keys, types.TKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = elem
	return keys
}

func insertLoc(locs []Locator, i int, elem Locator) []Locator {
	locs = append(locs, Locator{})
	copy(locs[i+1:], locs[i:])
	locs[i] = elem
	return locs
}

func insertChild(children []int32, i int, elem int32) []int32 {
	children = append(children, 0)
	copy(children[i+1:], children[i:])
	children[i] = elem
	return children
}

func removeKey(keys []types.TKey, i int) []types.TKey {
	return append(keys[:i], keys[i+1:]...)
}

func removeLoc(locs []Locator, i int) []Locator {
	return append(locs[:i], locs[i+1:]...)
}

func removeChild(children []int32, i int) []int32 {
	return append(children[:i], children[i+1:]...)
}

// findLeaf walks from the root to the leaf whose range contains key.
func (t *BPlusTree) findLeaf(key types.TKey) (*node, error) {
	if t.idx.Root < 0 {
		return nil, nil
	}
	n, err := t.fetchNode(t.idx.Root)
	if err != nil {
		return nil, err
	}
	for !n.leaf {
		if len(n.children) == 0 {
			return nil, fmt.Errorf("internal node %d has no children", n.blockNum)
		}
		i := childIndex(n.keys, key)
		n, err = t.fetchNode(n.children[i])
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// GetVal looks up key and returns its locator. The second result is false
// when the key is absent.
func (t *BPlusTree) GetVal(key types.TKey) (Locator, bool, error) {
	leaf, err := t.findLeaf(key)
	if err != nil || leaf == nil {
		return Locator{}, false, err
	}
	pos := findKey(leaf.keys, key)
	if pos < 0 {
		return Locator{}, false, nil
	}
	return leaf.locs[pos], true, nil
}

// UpdateVal overwrites the locator of an existing key in place. Used when a
// record moves within its block (swap-with-last delete) and the index entry
// must follow it.
func (t *BPlusTree) UpdateVal(key types.TKey, loc Locator) error {
	leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	if leaf == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	pos := findKey(leaf.keys, key)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	leaf.locs[pos] = loc
	return t.writeNode(leaf)
}

// Walk visits every (key, locator) pair in ascending key order, following
// the leaf chain from the leaf head. fn returning false stops the walk.
func (t *BPlusTree) Walk(fn func(key types.TKey, loc Locator) bool) error {
	num := t.idx.LeafHead
	for num >= 0 {
		leaf, err := t.fetchNode(num)
		if err != nil {
			return err
		}
		for i := range leaf.keys {
			if !fn(leaf.keys[i], leaf.locs[i]) {
				return nil
			}
		}
		num = leaf.next
	}
	return nil
}
