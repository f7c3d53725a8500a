package bplus

import (
	"fmt"
	"io"
)

// Print dumps the tree level by level, then the leaf chain. Debug traversal
// only — never part of the query path.
func (t *BPlusTree) Print(w io.Writer) error {
	fmt.Fprintf(w, "index %s on %s: root=%d level=%d keys=%d nodes=%d rubbish=%d\n",
		t.idx.Name, t.idx.AttrName, t.idx.Root, t.idx.Level,
		t.idx.KeyCount, t.idx.NodeCount, t.idx.Rubbish)

	if t.idx.Root < 0 {
		fmt.Fprintln(w, "  (empty)")
		return nil
	}

	level := []int32{t.idx.Root}
	depth := 0
	for len(level) > 0 {
		var next []int32
		fmt.Fprintf(w, "  depth %d:", depth)
		for _, num := range level {
			n, err := t.fetchNode(num)
			if err != nil {
				return err
			}
			kind := "int"
			if n.leaf {
				kind = "leaf"
			}
			fmt.Fprintf(w, "  [%s %d:", kind, n.blockNum)
			for _, k := range n.keys {
				fmt.Fprint(w, " ", k.String())
			}
			fmt.Fprint(w, "]")
			if !n.leaf {
				next = append(next, n.children...)
			}
		}
		fmt.Fprintln(w)
		level = next
		depth++
	}

	fmt.Fprint(w, "  leaves:")
	num := t.idx.LeafHead
	for num >= 0 {
		leaf, err := t.fetchNode(num)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, " %d", num)
		num = leaf.next
	}
	fmt.Fprintln(w)
	return nil
}
