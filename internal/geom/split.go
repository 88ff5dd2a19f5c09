package geom

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const splitEps = 1e-12

// piece is a part of a line between two crossings of the splitting ring.
// fromSplit is set when the piece starts on a crossing point.
type piece struct {
	line      orb.LineString
	fromSplit bool
}

// splitLine cuts ls at every point where it crosses an edge of ring.
func splitLine(ls orb.LineString, ring orb.Ring) []piece {
	if len(ls) < 2 {
		return nil
	}

	var out []piece
	cur := piece{line: orb.LineString{ls[0]}}
	for i := 0; i+1 < len(ls); i++ {
		a, b := ls[i], ls[i+1]
		for _, p := range crossings(a, b, ring) {
			if p == cur.line[len(cur.line)-1] {
				continue
			}
			cur.line = append(cur.line, p)
			out = append(out, cur)
			cur = piece{line: orb.LineString{p}, fromSplit: true}
		}
		if cur.line[len(cur.line)-1] != b {
			cur.line = append(cur.line, b)
		}
	}
	if len(cur.line) >= 2 {
		out = append(out, cur)
	}
	return out
}

// crossings returns the intersection points of segment a-b with the ring's
// edges, ordered from a to b. Touching at a itself is not a crossing.
func crossings(a, b orb.Point, ring orb.Ring) []orb.Point {
	type hit struct {
		t float64
		p orb.Point
	}
	var hits []hit
	for j := 0; j+1 < len(ring); j++ {
		t, ok := segmentIntersection(a, b, ring[j], ring[j+1])
		if !ok || t <= splitEps {
			continue
		}
		p := orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
		if t >= 1-splitEps {
			p = b
		}
		hits = append(hits, hit{t: t, p: p})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })

	out := make([]orb.Point, 0, len(hits))
	for _, h := range hits {
		if n := len(out); n > 0 && out[n-1] == h.p {
			continue
		}
		out = append(out, h.p)
	}
	return out
}

// segmentIntersection returns the parameter t along p1-p2 where it meets
// q1-q2. Parallel and collinear segments do not intersect.
func segmentIntersection(p1, p2, q1, q2 orb.Point) (float64, bool) {
	rx, ry := p2[0]-p1[0], p2[1]-p1[1]
	sx, sy := q2[0]-q1[0], q2[1]-q1[1]
	den := rx*sy - ry*sx
	if den == 0 {
		return 0, false
	}
	qpx, qpy := q1[0]-p1[0], q1[1]-p1[1]
	t := (qpx*sy - qpy*sx) / den
	u := (qpx*ry - qpy*rx) / den
	if t < -splitEps || t > 1+splitEps || u < -splitEps || u > 1+splitEps {
		return 0, false
	}
	return t, true
}

// startsInside tests the first point of a piece. Pieces beginning on a
// crossing are decided by the midpoint of their first edge instead.
func (pc piece) startsInside(poly orb.Polygon) bool {
	if !pc.fromSplit {
		return planar.PolygonContains(poly, pc.line[0])
	}
	a, b := pc.line[0], pc.line[1]
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	return planar.PolygonContains(poly, mid)
}
