package network

import "sort"

// windowMs is the span of one message window, one chain per millisecond.
const windowMs = 60000

type arrival struct {
	to NodeID
	at Time
}

// envelope carries one content to one or more readers. dests is sorted by
// arrival time and next is the index of the reader still to be served.
type envelope struct {
	content Content
	from    NodeID
	dests   []arrival
	next    int
	link    *envelope
}

func (e *envelope) at() Time { return e.dests[e.next].at }

type chain struct {
	head, tail *envelope
}

type window struct {
	start Time
	count int
	msgs  int
	slots [windowMs]chain
}

// store holds pending envelopes bucketed by arrival millisecond. Envelopes
// arriving in the same millisecond are served in insertion order.
// size counts every envelope, messages only those carrying a message.
type store struct {
	windows []*window
	size     int
	messages int
}

func (e *envelope) isMessage() bool {
	_, ok := e.content.(*task)
	return !ok
}

func (s *store) add(e *envelope) {
	at := e.at()
	start := at - at%windowMs
	w := s.window(start)
	c := &w.slots[at-start]
	e.link = nil
	if c.tail == nil {
		c.head = e
	} else {
		c.tail.link = e
	}
	c.tail = e
	w.count++
	s.size++
	if e.isMessage() {
		w.msgs++
		s.messages++
	}
}

func (s *store) window(start Time) *window {
	i := sort.Search(len(s.windows), func(i int) bool { return s.windows[i].start >= start })
	if i < len(s.windows) && s.windows[i].start == start {
		return s.windows[i]
	}
	w := &window{start: start}
	s.windows = append(s.windows, nil)
	copy(s.windows[i+1:], s.windows[i:])
	s.windows[i] = w
	return w
}

// poll removes the first envelope due exactly at now.
func (s *store) poll(now Time) *envelope {
	s.discard(now)
	if len(s.windows) == 0 {
		return nil
	}
	w := s.windows[0]
	if now < w.start || now >= w.start+windowMs {
		return nil
	}
	c := &w.slots[now-w.start]
	e := c.head
	if e == nil {
		return nil
	}
	c.head = e.link
	if c.head == nil {
		c.tail = nil
	}
	e.link = nil
	w.count--
	s.size--
	if e.isMessage() {
		w.msgs--
		s.messages--
	}
	return e
}

// first returns the start of the earliest window holding an envelope.
func (s *store) first(now Time) (Time, bool) {
	s.discard(now)
	if len(s.windows) == 0 {
		return 0, false
	}
	return s.windows[0].start, true
}

// discard drops windows that are empty or entirely in the past.
func (s *store) discard(now Time) {
	for len(s.windows) > 0 {
		w := s.windows[0]
		if w.count > 0 && w.start+windowMs > now {
			return
		}
		s.size -= w.count
		s.messages -= w.msgs
		s.windows[0] = nil
		s.windows = s.windows[1:]
	}
}
