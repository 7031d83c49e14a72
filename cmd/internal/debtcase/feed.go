package debtcase

import (
	"slices"
	"sync"
	"time"
)

// DefaultHighlight is how long a newly pushed case stays highlighted.
const DefaultHighlight = 5 * time.Second

// Feed is a case list that also accepts pushed cases. Safe for concurrent use.
type Feed struct {
	mu        sync.Mutex
	now       func() time.Time
	highlight time.Duration
	cases     []DebtCase
	fresh     map[int]time.Time
}

type FeedOption func(*Feed)

func WithFeedClock(now func() time.Time) FeedOption {
	return func(f *Feed) {
		if now != nil {
			f.now = now
		}
	}
}

func WithHighlight(d time.Duration) FeedOption {
	return func(f *Feed) {
		if d > 0 {
			f.highlight = d
		}
	}
}

func NewFeed(initial []DebtCase, opts ...FeedOption) *Feed {
	f := &Feed{
		now:       time.Now,
		highlight: DefaultHighlight,
		cases:     slices.Clone(initial),
		fresh:     make(map[int]time.Time),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Merge appends c unless a case with the same id is already held. It reports
// whether c was added.
func (f *Feed) Merge(c DebtCase) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexOf(c.ID) >= 0 {
		return false
	}
	f.cases = append(f.cases, c)
	f.fresh[c.ID] = f.now().Add(f.highlight)
	return true
}

// Replace swaps the held list, e.g. after a refetch. Highlights survive for
// cases still present.
func (f *Feed) Replace(cases []DebtCase) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cases = slices.Clone(cases)
	for id := range f.fresh {
		if f.indexOf(id) < 0 {
			delete(f.fresh, id)
		}
	}
}

func (f *Feed) Cases() []DebtCase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.cases)
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cases)
}

// Highlighted reports whether id was merged less than the highlight window ago.
func (f *Feed) Highlighted(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	until, ok := f.fresh[id]
	if !ok {
		return false
	}
	if !f.now().Before(until) {
		delete(f.fresh, id)
		return false
	}
	return true
}

func (f *Feed) indexOf(id int) int {
	return slices.IndexFunc(f.cases, func(c DebtCase) bool { return c.ID == id })
}
