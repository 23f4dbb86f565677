package schedule

import (
	"sort"

	"farm_scheduler/inventory"
)

// RepotSchedule groups plants by whole days remaining until they are due
// for their next placement. Keys at or below zero are due now.
type RepotSchedule map[int][]*inventory.Plant

// ComputeRepotSchedule builds a fresh schedule from plants. It never reads
// a previous schedule, so nothing stale can survive a recompute.
func ComputeRepotSchedule(plants []*inventory.Plant) RepotSchedule {
	rs := make(RepotSchedule)
	for _, p := range plants {
		rem := p.Remaining()
		rs[rem] = append(rs[rem], p)
	}
	return rs
}

// Keys returns the bucket keys in ascending order.
func (rs RepotSchedule) Keys() []int {
	keys := make([]int, 0, len(rs))
	for k := range rs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Bucket returns the plants with exactly days remaining.
func (rs RepotSchedule) Bucket(days int) []*inventory.Plant {
	return rs[days]
}

// Due returns every plant with zero or negative days remaining, ordered by id.
func (rs RepotSchedule) Due() []*inventory.Plant {
	var due []*inventory.Plant
	for k, plants := range rs {
		if k <= 0 {
			due = append(due, plants...)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due
}

// Overdue returns plants that stayed past their stage duration.
func (rs RepotSchedule) Overdue() []*inventory.Plant {
	var late []*inventory.Plant
	for _, p := range rs.Due() {
		if p.Remaining() < 0 {
			late = append(late, p)
		}
	}
	return late
}

// Len is the number of plants across all buckets.
func (rs RepotSchedule) Len() int {
	n := 0
	for _, plants := range rs {
		n += len(plants)
	}
	return n
}
