package journal

// DefaultLookback is the ring buffer capacity of the Expander.
const DefaultLookback = 20

// Expander materializes repeated lines from repeat directives. It keeps a
// bounded buffer of the most recent non-expanded entries; a directive replays
// the last N of them M times with IsExpanded set. Expanded copies are never
// added back to the buffer, so a later directive can never re-expand
// previously expanded content.
type Expander struct {
	buf      []*Entry
	lookback int
}

// NewExpander creates an Expander. A lookback <= 0 uses DefaultLookback.
func NewExpander(lookback int) *Expander {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Expander{lookback: lookback}
}

// Push records a non-expanded entry in the lookback buffer.
func (x *Expander) Push(e *Entry) {
	x.buf = append(x.buf, e)
	if len(x.buf) > x.lookback {
		x.buf = x.buf[1:]
	}
}

// Expand replays the directive against the buffered history. If the buffer
// holds fewer entries than the directive asks for, the directive is dropped
// and nil is returned.
func (x *Expander) Expand(d *RepeatDirective) []*Entry {
	if d.LineCount <= 0 || len(x.buf) < d.LineCount {
		return nil
	}
	source := x.buf[len(x.buf)-d.LineCount:]

	out := make([]*Entry, 0, d.LineCount*d.RepeatCount)
	for i := 0; i < d.RepeatCount; i++ {
		for _, src := range source {
			dup := *src
			dup.IsExpanded = true
			dup.ExpansionCount = d.RepeatCount
			out = append(out, &dup)
		}
	}
	return out
}
