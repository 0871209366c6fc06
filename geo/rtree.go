package geo

import (
	"github.com/dhconnelly/rtreego"
	"github.com/poiesic/rankit/core"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
	pointTolerance   = 1e-9
)

// Located is a document and its position.
type Located struct {
	Doc   core.DocumentID
	Point Point
}

type rtreeItem struct {
	Located
	bounds rtreego.Rect
}

func (i *rtreeItem) Bounds() rtreego.Rect {
	return i.bounds
}

// Index is an R-tree over the xyz projection of document positions.
type Index struct {
	tree *rtreego.Rtree
}

// NewIndex bulk loads an index over points.
func NewIndex(points []Located) *Index {
	items := make([]rtreego.Spatial, 0, len(points))
	for _, p := range points {
		xyz := p.Point.XYZ()
		items = append(items, &rtreeItem{
			Located: p,
			bounds:  rtreego.Point(xyz[:]).ToRect(pointTolerance),
		})
	}
	return &Index{tree: rtreego.NewTree(3, rtreeMinChildren, rtreeMaxChildren, items...)}
}

// Size returns the number of indexed documents.
func (ix *Index) Size() int {
	return ix.tree.Size()
}

// Nearest returns up to k documents accepted by keep, nearest to target
// first.
func (ix *Index) Nearest(target Point, k int, keep func(core.DocumentID) bool) []Located {
	if k <= 0 {
		return nil
	}
	xyz := target.XYZ()
	filter := func(_ []rtreego.Spatial, obj rtreego.Spatial) (refuse, abort bool) {
		item, ok := obj.(*rtreeItem)
		return !ok || !keep(item.Doc), false
	}

	found := ix.tree.NearestNeighbors(k, rtreego.Point(xyz[:]), filter)
	out := make([]Located, 0, len(found))
	for _, obj := range found {
		// the tree pads the result with nils when fewer than k items match
		if item, ok := obj.(*rtreeItem); ok && item != nil {
			out = append(out, item.Located)
		}
	}
	return out
}
