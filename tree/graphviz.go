package tree

import (
	"fmt"
	"io"

	"github.com/phil-mansfield/sphpart/geom"
)

// WriteGraphviz renders the tree's node arena as a graphviz digraph for
// debugging. Leaves are labeled with their body count and cells overlapping
// highlight (typically the rank's owned region) are drawn filled. This is a
// diagnostic: its errors are the writer's only and nothing here touches
// simulation state.
func WriteGraphviz(w io.Writer, t *Tree, highlight geom.Bounds) error {
	if _, err := fmt.Fprintf(w, "digraph tree {\n"); err != nil {
		return err
	}

	for i := range t.Nodes {
		n := &t.Nodes[i]
		style := ""
		if n.Bounds.Intersects(highlight) {
			style = ` style="filled"`
		}
		label := fmt.Sprintf("L%d", n.Level)
		if n.leaf {
			label = fmt.Sprintf("L%d n=%d g=%d", n.Level, n.Count, len(n.ghosts))
		}
		_, err := fmt.Fprintf(w, "    n%d [label=\"%s\"%s];\n", i, label, style)
		if err != nil {
			return err
		}
		for _, child := range n.Children {
			if child == nilNode {
				continue
			}
			if _, err := fmt.Fprintf(w, "    n%d -> n%d;\n", i, child); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintf(w, "}\n")
	return err
}
