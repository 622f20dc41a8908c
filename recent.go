package statetrack

// recentSize bounds the mutation stamps a tracker remembers. Copies of one
// mutation arrive while it is being delivered, so only the latest matter.
const recentSize = 64

// recent is a bounded set of mutation stamps.
type recent struct {
	seen  map[uint64]struct{}
	order []uint64
}

// add records seq and reports whether it was new.
func (r *recent) add(seq uint64) bool {
	if r.seen == nil {
		r.seen = make(map[uint64]struct{}, recentSize)
	}
	if _, ok := r.seen[seq]; ok {
		return false
	}
	r.seen[seq] = struct{}{}
	r.order = append(r.order, seq)
	if len(r.order) > recentSize {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}
	return true
}
