package kport

// Trigger records which neighbor nodes observed a flag transition on the
// ports of one processor. It is owned by the goroutine currently driving that
// processor and is not safe for concurrent use.
type Trigger struct {
	touched []int
}

func (t *Trigger) mark(node int) {
	for _, n := range t.touched {
		if n == node {
			return
		}
	}
	t.touched = append(t.touched, node)
}

// Drain appends the recorded nodes to dst, resets the trigger and returns dst.
func (t *Trigger) Drain(dst []int) []int {
	dst = append(dst, t.touched...)
	t.touched = t.touched[:0]
	return dst
}

// Len returns the number of recorded nodes.
func (t *Trigger) Len() int {
	return len(t.touched)
}
