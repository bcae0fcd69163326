package kanban

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// DefaultActivationDistance is the pointer travel, in pointer units, before a press becomes a drag.
const DefaultActivationDistance = 8

// Point is a pointer position.
type Point struct {
	X int
	Y int
}

// Rect is an axis-aligned box on the drop surface.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Contains reports whether p falls inside the rect.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Translate shifts the rect by dx, dy.
func (r Rect) Translate(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Area returns the rect's area.
func (r Rect) Area() int {
	return r.W * r.H
}

func (r Rect) corners() [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.W, Y: r.Y},
		{X: r.X, Y: r.Y + r.H},
		{X: r.X + r.W, Y: r.Y + r.H},
	}
}

// GeometryKind distinguishes column drop zones from sibling cards.
type GeometryKind string

// GeometryKind values.
const (
	GeometryColumn GeometryKind = "column"
	GeometryItem   GeometryKind = "item"
)

// Geometry is one droppable region. For column geometries ID and Column are both the column id.
type Geometry struct {
	ID     string
	Column string
	Kind   GeometryKind
	Rect   Rect
}

// Target is where a drop would land: a column, optionally before a sibling item.
type Target struct {
	Column string
	ItemID string
}

func (g Geometry) target() Target {
	if g.Kind == GeometryItem {
		return Target{Column: g.Column, ItemID: g.ID}
	}
	return Target{Column: g.Column}
}

// DropResolver picks the droppable a dragged rect is over.
type DropResolver interface {
	Resolve(active Rect, pointer Point, candidates []Geometry) (Target, bool)
}

// ClosestCorners picks the candidate whose corners are nearest to the dragged rect's corners. A
// pointer outside every candidate has left the drop surface and resolves to nothing.
type ClosestCorners struct{}

// Resolve implements DropResolver.
func (ClosestCorners) Resolve(active Rect, pointer Point, candidates []Geometry) (Target, bool) {
	if !slices.ContainsFunc(candidates, func(g Geometry) bool { return g.Rect.Contains(pointer) }) {
		return Target{}, false
	}
	best := -1
	bestDist := math.Inf(1)
	from := active.corners()
	for i, candidate := range candidates {
		to := candidate.Rect.corners()
		var dist float64
		for c := range from {
			dist += math.Hypot(float64(from[c].X-to[c].X), float64(from[c].Y-to[c].Y))
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return Target{}, false
	}
	return candidates[best].target(), true
}

// PointerWithin picks the smallest candidate containing the pointer.
type PointerWithin struct{}

// Resolve implements DropResolver.
func (PointerWithin) Resolve(_ Rect, pointer Point, candidates []Geometry) (Target, bool) {
	best := -1
	for i, candidate := range candidates {
		if !candidate.Rect.Contains(pointer) {
			continue
		}
		if best < 0 || candidate.Rect.Area() < candidates[best].Rect.Area() {
			best = i
		}
	}
	if best < 0 {
		return Target{}, false
	}
	return candidates[best].target(), true
}

// ParseResolver maps a collision strategy name to a resolver.
func ParseResolver(name string) (DropResolver, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "closest_corners":
		return ClosestCorners{}, nil
	case "pointer_within":
		return PointerWithin{}, nil
	default:
		return nil, fmt.Errorf("unknown collision strategy %q", name)
	}
}

// DragSession tracks one pointer or keyboard drag from press to drop.
type DragSession struct {
	ItemID string
	Source string

	origin    Point
	pointer   Point
	rect      Rect
	distance  int
	resolver  DropResolver
	active    bool
	cancelled bool
	target    Target
	hasTarget bool
}

func newDragSession(itemID, source string, origin Point, rect Rect, distance int, resolver DropResolver) *DragSession {
	if resolver == nil {
		resolver = ClosestCorners{}
	}
	return &DragSession{
		ItemID:   itemID,
		Source:   source,
		origin:   origin,
		pointer:  origin,
		rect:     rect,
		distance: max(distance, 0),
		resolver: resolver,
	}
}

// Update records pointer motion. Once the pointer has travelled the activation distance the
// session becomes active and resolves its hover target against candidates.
func (s *DragSession) Update(p Point, candidates []Geometry) (Target, bool) {
	if s.cancelled {
		return Target{}, false
	}
	s.pointer = p
	if !s.active {
		dx, dy := float64(p.X-s.origin.X), float64(p.Y-s.origin.Y)
		if math.Hypot(dx, dy) < float64(s.distance) {
			return Target{}, false
		}
		s.active = true
	}
	filtered := make([]Geometry, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Kind == GeometryItem && candidate.ID == s.ItemID {
			continue
		}
		filtered = append(filtered, candidate)
	}
	target, ok := s.resolver.Resolve(s.DraggedRect(), p, filtered)
	s.target, s.hasTarget = target, ok
	return target, ok
}

// Activate starts the drag without travel, as keyboard pick-ups do.
func (s *DragSession) Activate() {
	if !s.cancelled {
		s.active = true
	}
}

// Hover sets the target directly. The dragged item can never be its own target.
func (s *DragSession) Hover(target Target) bool {
	if s.cancelled || target.ItemID == s.ItemID || target.Column == "" {
		return false
	}
	s.active = true
	s.target, s.hasTarget = target, true
	return true
}

// Cancel ends the session without effect.
func (s *DragSession) Cancel() {
	s.cancelled = true
	s.hasTarget = false
}

// Active reports whether the activation distance has been crossed.
func (s *DragSession) Active() bool {
	return s.active && !s.cancelled
}

// Cancelled reports whether the session was cancelled.
func (s *DragSession) Cancelled() bool {
	return s.cancelled
}

// Target returns the current hover target.
func (s *DragSession) Target() (Target, bool) {
	return s.target, s.hasTarget
}

// Pointer returns the last pointer position.
func (s *DragSession) Pointer() Point {
	return s.pointer
}

// DraggedRect returns the origin rect translated by the pointer delta.
func (s *DragSession) DraggedRect() Rect {
	return s.rect.Translate(s.pointer.X-s.origin.X, s.pointer.Y-s.origin.Y)
}
