// Package layout turns bucketed occurrence items into render geometry:
// horizontal lanes with overflow for the all-day row, and per-day pixel
// positions with column packing for the timed grid.
package layout

import (
	"sort"

	"calview/internal/collection"
	"calview/internal/temporal"
)

// defaultMinVisibleLanes is the lane capacity floor when the caller does not
// configure one.
const defaultMinVisibleLanes = 2

// PackOptions configures lane packing.
type PackOptions struct {
	// MinVisibleLanes is the visible lane capacity; lanes beyond it are
	// relegated to overflow. Zero means defaultMinVisibleLanes.
	MinVisibleLanes int
}

// PackResult is a deterministic lane assignment for a set of all-day and
// multi-day items.
type PackResult struct {
	// VisibleLanes holds the rendered lanes, index = lane number.
	VisibleLanes [][]collection.Item
	// OverflowLanes holds the lanes beyond the visible capacity.
	OverflowLanes [][]collection.Item
	// TotalLanes never shrinks below the capacity floor, so reserved
	// vertical space stays stable with few events but grows for genuine
	// overflow.
	TotalLanes int
	// OverflowEvents flattens OverflowLanes in lane order.
	OverflowEvents []collection.Item
	// OverflowByDay lists, per visible day, the overflow items active on
	// that day (drives the "+N more" indicator).
	OverflowByDay map[temporal.PlainDate][]collection.Item

	HasOverflow   bool
	OverflowCount int
}

// PackLanes assigns each item to the first lane it fits into, scanning lanes
// in index order (greedy interval coloring). Items are ordered by start
// ascending with longer spans first, so long bars take low lanes and
// fragment the row less; equal (start, span) pairs keep input order, making
// the packing deterministic across recomputations.
//
// An item whose start coincides with a lane's last end boundary fits that
// lane: the end boundary is treated as free.
func PackLanes(items []collection.Item, opts PackOptions) PackResult {
	minVisible := opts.MinVisibleLanes
	if minVisible <= 0 {
		minVisible = defaultMinVisibleLanes
	}

	res := PackResult{
		TotalLanes:    minVisible,
		OverflowByDay: make(map[temporal.PlainDate][]collection.Item),
	}
	if len(items) == 0 {
		return res
	}

	ordered := make([]collection.Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if c := a.Start.ToInstant().Compare(b.Start.ToInstant()); c != 0 {
			return c < 0
		}
		return a.End.Sub(a.Start) > b.End.Sub(b.Start)
	})

	var lanes [][]collection.Item
	var laneEnds []temporal.Instant

	for _, it := range ordered {
		start := it.Start.ToInstant()
		placed := false
		for i, laneEnd := range laneEnds {
			if start.Compare(laneEnd) >= 0 {
				lanes[i] = append(lanes[i], it)
				laneEnds[i] = it.End.ToInstant()
				placed = true
				break
			}
		}
		if !placed {
			lanes = append(lanes, []collection.Item{it})
			laneEnds = append(laneEnds, it.End.ToInstant())
		}
	}

	if len(lanes) > res.TotalLanes {
		res.TotalLanes = len(lanes)
	}

	if len(lanes) <= minVisible {
		res.VisibleLanes = lanes
		return res
	}

	res.VisibleLanes = lanes[:minVisible]
	res.OverflowLanes = lanes[minVisible:]

	for _, lane := range res.OverflowLanes {
		for _, it := range lane {
			res.OverflowEvents = append(res.OverflowEvents, it)
			for _, d := range temporal.EachDay(it.Start.ToPlainDate(), it.End.ToPlainDate()) {
				res.OverflowByDay[d] = append(res.OverflowByDay[d], it)
			}
		}
	}
	res.OverflowCount = len(res.OverflowEvents)
	res.HasOverflow = res.OverflowCount > 0

	return res
}
