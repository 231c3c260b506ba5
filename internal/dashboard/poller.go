package dashboard

import (
	"context"
	"time"

	"rescueboard/internal/model"
)

// DefaultPollInterval is how often the dashboard refreshes.
const DefaultPollInterval = 5 * time.Second

// Snapshot is the result of one poll.
type Snapshot struct {
	Stats     model.FoodStats
	Foods     []model.Food
	FetchedAt time.Time
	Err       error
}

// Source is the subset of Client the poller needs.
type Source interface {
	Stats(ctx context.Context, sess *Session) (model.FoodStats, error)
	ListAll(ctx context.Context, sess *Session) ([]model.Food, error)
}

// Poller fetches stats and listings immediately and then on every tick.
// Fetches run one after the other, so at most one is in flight.
type Poller struct {
	source   Source
	session  *Session
	interval time.Duration
	refresh  chan struct{}
}

// NewPoller creates a Poller. interval <= 0 means DefaultPollInterval.
func NewPoller(source Source, sess *Session, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{source: source, session: sess, interval: interval, refresh: make(chan struct{}, 1)}
}

// Refresh asks for an extra fetch as soon as the current one is done, e.g.
// after a delete. It never blocks.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled and calls onSnapshot after every fetch.
func (p *Poller) Run(ctx context.Context, onSnapshot func(Snapshot)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		snap := p.Fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		onSnapshot(snap)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.refresh:
		}
	}
}

// Fetch performs one poll.
func (p *Poller) Fetch(ctx context.Context) Snapshot {
	snap := Snapshot{FetchedAt: time.Now()}
	stats, err := p.source.Stats(ctx, p.session)
	if err != nil {
		snap.Err = err
		return snap
	}
	foods, err := p.source.ListAll(ctx, p.session)
	if err != nil {
		snap.Err = err
		return snap
	}
	snap.Stats = stats
	snap.Foods = foods
	return snap
}
