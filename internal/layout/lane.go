package layout

// DefaultLaneCap is the index of the overflow lane when no cap is given.
const DefaultLaneCap = 10

// LaneGrid tracks which day offsets each lane of one week already holds.
type LaneGrid struct {
	lanes [][7]bool
}

// Len returns the number of lanes touched so far.
func (g *LaneGrid) Len() int {
	return len(g.lanes)
}

// Fits reports whether lane has no occupied day in start..end.
func (g *LaneGrid) Fits(lane, start, end int) bool {
	if lane >= len(g.lanes) {
		return true
	}
	for d := start; d <= end; d++ {
		if g.lanes[lane][d] {
			return false
		}
	}
	return true
}

// Occupy marks start..end as taken in lane, growing the grid as needed.
func (g *LaneGrid) Occupy(lane, start, end int) {
	for len(g.lanes) <= lane {
		g.lanes = append(g.lanes, [7]bool{})
	}
	for d := start; d <= end; d++ {
		g.lanes[lane][d] = true
	}
}

// AssignLanes places each segment, in slice order, into the lowest lane
// below laneCap whose days are free. Segments that fit nowhere land in lane
// laneCap whether or not it is free; those that collide there get Overflow
// set. Draft segments never go below a non-draft segment they overlap.
//
// It returns the number of lanes in use. laneCap <= 0 selects
// DefaultLaneCap.
func AssignLanes(segs []Segment, laneCap int) int {
	if laneCap <= 0 {
		laneCap = DefaultLaneCap
	}

	var grid LaneGrid
	used := 0
	for i := range segs {
		s := &segs[i]

		floor := 0
		if s.Event.IsDraft() {
			floor = draftFloor(segs[:i], *s)
		}

		lane := laneCap
		for l := floor; l < laneCap; l++ {
			if grid.Fits(l, s.StartOffset, s.EndOffset) {
				lane = l
				break
			}
		}
		if lane == laneCap && !grid.Fits(lane, s.StartOffset, s.EndOffset) {
			s.Overflow = true
		}

		grid.Occupy(lane, s.StartOffset, s.EndOffset)
		s.Lane = lane
		if lane+1 > used {
			used = lane + 1
		}
	}
	return used
}

// draftFloor is one past the highest lane held by a placed non-draft
// segment that overlaps s.
func draftFloor(placed []Segment, s Segment) int {
	floor := 0
	for _, p := range placed {
		if p.Event.IsDraft() || !p.collides(s) {
			continue
		}
		if p.Lane+1 > floor {
			floor = p.Lane + 1
		}
	}
	return floor
}
