package bplus

import (
	"fmt"

	"minidb/types"
)

// Remove deletes key from the tree, borrowing from or merging with siblings
// on underflow, collapsing the root when it empties, and pushing dead nodes
// onto the rubbish chain.
func (t *BPlusTree) Remove(key types.TKey) error {
	if t.idx.Root < 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	_, err := t.removeRecursive(t.idx.Root, key)
	return err
}

// removeRecursive deletes key under blockNum and reports whether the node
// ended below the minimum occupancy.
func (t *BPlusTree) removeRecursive(blockNum int32, key types.TKey) (bool, error) {
	n, err := t.fetchNode(blockNum)
	if err != nil {
		return false, err
	}

	if n.leaf {
		pos := findKey(n.keys, key)
		if pos < 0 {
			return false, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		n.keys = removeKey(n.keys, pos)
		n.locs = removeLoc(n.locs, pos)
		t.idx.KeyCount--

		if blockNum == t.idx.Root {
			if len(n.keys) == 0 {
				// Last key gone: the tree is empty again.
				if err := t.freeNode(n); err != nil {
					return false, err
				}
				t.idx.Root = -1
				t.idx.LeafHead = -1
				t.idx.Level = 0
				return false, nil
			}
			return false, t.writeNode(n)
		}
		if err := t.writeNode(n); err != nil {
			return false, err
		}
		return len(n.keys) < t.idx.MinKeys(), nil
	}

	i := childIndex(n.keys, key)
	underflow, err := t.removeRecursive(n.children[i], key)
	if err != nil {
		return false, err
	}
	if !underflow {
		return false, nil
	}

	if err := t.rebalanceChild(n, i); err != nil {
		return false, err
	}

	// Root collapse: an internal root with no keys has exactly one child
	// left, which becomes the new root one level down.
	if blockNum == t.idx.Root && len(n.keys) == 0 {
		newRootNum := n.children[0]
		newRoot, err := t.fetchNode(newRootNum)
		if err != nil {
			return false, err
		}
		newRoot.parent = -1
		if err := t.writeNode(newRoot); err != nil {
			return false, err
		}
		if err := t.freeNode(n); err != nil {
			return false, err
		}
		t.idx.Root = newRootNum
		t.idx.Level--
		return false, nil
	}

	return len(n.keys) < t.idx.MinKeys(), nil
}

// rebalanceChild restores the occupancy of parent's i-th child after it
// underflowed: borrow from a sibling with spare keys, else merge.
func (t *BPlusTree) rebalanceChild(parent *node, i int) error {
	child, err := t.fetchNode(parent.children[i])
	if err != nil {
		return err
	}

	var left, right *node
	if i > 0 {
		if left, err = t.fetchNode(parent.children[i-1]); err != nil {
			return err
		}
	}
	if i < len(parent.children)-1 {
		if right, err = t.fetchNode(parent.children[i+1]); err != nil {
			return err
		}
	}

	// Borrow from the left sibling.
	if left != nil && len(left.keys) > t.idx.MinKeys() {
		if child.leaf {
			last := len(left.keys) - 1
			movedKey := left.keys[last]
			movedLoc := left.locs[last]
			left.keys = left.keys[:last]
			left.locs = left.locs[:last]

			child.keys = insertKey(child.keys, 0, movedKey)
			child.locs = insertLoc(child.locs, 0, movedLoc)
			parent.keys[i-1] = child.keys[0].Clone()
		} else {
			// Rotate through the parent separator.
			last := len(left.keys) - 1
			separator := parent.keys[i-1]
			movedKey := left.keys[last]
			movedChild := left.children[last+1]
			left.keys = left.keys[:last]
			left.children = left.children[:last+1]

			child.keys = insertKey(child.keys, 0, separator)
			child.children = insertChild(child.children, 0, movedChild)
			parent.keys[i-1] = movedKey

			if err := t.reparent(movedChild, child.blockNum); err != nil {
				return err
			}
		}
		if err := t.writeNode(left); err != nil {
			return err
		}
		if err := t.writeNode(child); err != nil {
			return err
		}
		return t.writeNode(parent)
	}

	// Borrow from the right sibling.
	if right != nil && len(right.keys) > t.idx.MinKeys() {
		if child.leaf {
			movedKey := right.keys[0]
			movedLoc := right.locs[0]
			right.keys = right.keys[1:]
			right.locs = right.locs[1:]

			child.keys = append(child.keys, movedKey)
			child.locs = append(child.locs, movedLoc)
			parent.keys[i] = right.keys[0].Clone()
		} else {
			separator := parent.keys[i]
			movedKey := right.keys[0]
			movedChild := right.children[0]
			right.keys = right.keys[1:]
			right.children = right.children[1:]

			child.keys = append(child.keys, separator)
			child.children = append(child.children, movedChild)
			parent.keys[i] = movedKey

			if err := t.reparent(movedChild, child.blockNum); err != nil {
				return err
			}
		}
		if err := t.writeNode(right); err != nil {
			return err
		}
		if err := t.writeNode(child); err != nil {
			return err
		}
		return t.writeNode(parent)
	}

	// No sibling can spare a key: merge.
	if left != nil {
		// Merge child into left; child dies.
		if child.leaf {
			left.keys = append(left.keys, child.keys...)
			left.locs = append(left.locs, child.locs...)
			left.next = child.next
		} else {
			left.keys = append(left.keys, parent.keys[i-1])
			left.keys = append(left.keys, child.keys...)
			for _, childNum := range child.children {
				if err := t.reparent(childNum, left.blockNum); err != nil {
					return err
				}
			}
			left.children = append(left.children, child.children...)
		}
		parent.keys = removeKey(parent.keys, i-1)
		parent.children = removeChild(parent.children, i)

		if err := t.writeNode(left); err != nil {
			return err
		}
		if err := t.freeNode(child); err != nil {
			return err
		}
		return t.writeNode(parent)
	}

	// Merge right into child; right dies.
	if child.leaf {
		child.keys = append(child.keys, right.keys...)
		child.locs = append(child.locs, right.locs...)
		child.next = right.next
	} else {
		child.keys = append(child.keys, parent.keys[i])
		child.keys = append(child.keys, right.keys...)
		for _, childNum := range right.children {
			if err := t.reparent(childNum, child.blockNum); err != nil {
				return err
			}
		}
		child.children = append(child.children, right.children...)
	}
	parent.keys = removeKey(parent.keys, i)
	parent.children = removeChild(parent.children, i+1)

	if err := t.writeNode(child); err != nil {
		return err
	}
	if err := t.freeNode(right); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// reparent updates one node's parent pointer on disk.
func (t *BPlusTree) reparent(blockNum, parentNum int32) error {
	n, err := t.fetchNode(blockNum)
	if err != nil {
		return fmt.Errorf("reparent: failed to fetch node %d: %w", blockNum, err)
	}
	n.parent = parentNum
	return t.writeNode(n)
}
