package beacon

// Collector accumulates the validators' contributions of one generation
// window.
type Collector struct {
	values []uint64
	sent   bool
}

// Add records a contribution.
func (c *Collector) Add(v uint64) { c.values = append(c.values, v) }

// Len returns the number of contributions.
func (c *Collector) Len() int { return len(c.values) }

// XOR combines every contribution.
func (c *Collector) XOR() uint64 {
	var x uint64
	for _, v := range c.values {
		x ^= v
	}
	return x
}

// ReachedThird reports whether a third of the shard contributed.
func (c *Collector) ReachedThird(shardSize int) bool {
	return float64(len(c.values)) >= float64(shardSize)/3.0
}

// Sent reports whether the window already produced its value.
func (c *Collector) Sent() bool { return c.sent }

// MarkSent closes the window.
func (c *Collector) MarkSent() { c.sent = true }

// Clear opens a new window.
func (c *Collector) Clear() {
	c.values = c.values[:0]
	c.sent = false
}
