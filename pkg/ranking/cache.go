package ranking

import (
	"errors"
	"fmt"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

var (
	// ErrNotRanked is returned when the index is requested for a date that
	// has not completed ranking.
	ErrNotRanked = errors.New("date not ranked")
	// ErrUnknownItem is returned when a detail lookup names a paper absent
	// from the detail store for that date.
	ErrUnknownItem = errors.New("unknown ranking item")
	// ErrRankingInProgress guards the single-writer-per-date rule.
	ErrRankingInProgress = errors.New("ranking already in progress for date")
)

type dateState int

const (
	stateUnranked dateState = iota
	stateRanking
	stateRanked
)

// Cache is the two-tier ranking store: a lightweight index keyed by date
// and full detail entries keyed by (date, paper id). Both tiers are
// installed together under one lock, so no reader ever observes an index
// entry without its matching detail.
//
// Backing store is go-cache without expiration: entries live until an
// explicit re-rank replaces them. It is the same store the in-memory
// session repository uses, minus the TTL that would let the tiers drift.
type Cache struct {
	mu     sync.RWMutex
	states map[string]dateState
	store  *gocache.Cache
}

func NewCache() *Cache {
	return &Cache{
		states: map[string]dateState{},
		store:  gocache.New(gocache.NoExpiration, 0),
	}
}

func indexKey(date string) string {
	return "index/" + date
}

func detailKey(date, paperID string) string {
	return "detail/" + date + "/" + paperID
}

// Begin transitions a date into the Ranking state. Allowed from Unranked
// (first ranking) and from Ranked (explicit re-rank); a concurrent ranking
// for the same date is rejected.
func (c *Cache) Begin(date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.states[date] == stateRanking {
		return fmt.Errorf("%w: %s", ErrRankingInProgress, date)
	}
	c.states[date] = stateRanking
	return nil
}

// Abort rolls a Ranking date back: to Ranked when a previous ranking is
// still installed, to Unranked otherwise. The installed tiers are left
// untouched.
func (c *Cache) Abort(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.states[date] != stateRanking {
		return
	}
	if _, ok := c.store.Get(indexKey(date)); ok {
		c.states[date] = stateRanked
	} else {
		delete(c.states, date)
	}
}

// Install atomically replaces both tiers for a date and marks it Ranked.
// Entries must already be in final ranking order.
func (c *Cache) Install(date string, entries []ScoreEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop details from a previous ranking of this date so a shrunken
	// re-rank cannot leave orphaned detail entries behind.
	if old, ok := c.store.Get(indexKey(date)); ok {
		for _, e := range old.([]IndexEntry) {
			c.store.Delete(detailKey(date, e.PaperID))
		}
	}

	index := make([]IndexEntry, len(entries))
	for i, e := range entries {
		index[i] = e.IndexEntry()
		c.store.Set(detailKey(date, e.PaperID), e, gocache.NoExpiration)
	}
	c.store.Set(indexKey(date), index, gocache.NoExpiration)
	c.states[date] = stateRanked
}

// Index returns the ordered lightweight ranking for a Ranked date.
func (c *Cache) Index(date string) ([]IndexEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.states[date] != stateRanked {
		return nil, fmt.Errorf("%w: %s", ErrNotRanked, date)
	}
	stored, ok := c.store.Get(indexKey(date))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRanked, date)
	}

	index := stored.([]IndexEntry)
	out := make([]IndexEntry, len(index))
	copy(out, index)
	return out, nil
}

// Details returns full entries for the requested ids only. Callers narrow
// the id set from a prior Index read; asking for an id the date never
// ranked is a protocol misuse, not a soft miss.
func (c *Cache) Details(date string, paperIDs []string) ([]ScoreEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.states[date] != stateRanked {
		return nil, fmt.Errorf("%w: %s", ErrNotRanked, date)
	}

	entries := make([]ScoreEntry, 0, len(paperIDs))
	for _, id := range paperIDs {
		stored, ok := c.store.Get(detailKey(date, id))
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownItem, date, id)
		}
		entries = append(entries, stored.(ScoreEntry))
	}
	return entries, nil
}

// IsRanked reports whether the date has a completed ranking installed.
func (c *Cache) IsRanked(date string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states[date] == stateRanked
}

// RankedDates lists every date currently in the Ranked state.
func (c *Cache) RankedDates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dates := make([]string, 0, len(c.states))
	for date, s := range c.states {
		if s == stateRanked {
			dates = append(dates, date)
		}
	}
	return dates
}
