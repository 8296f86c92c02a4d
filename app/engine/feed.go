package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/feed-sync/app/database"
	"github.com/lysyi3m/feed-sync/app/feed"
	"github.com/lysyi3m/feed-sync/app/realtime"
	"github.com/lysyi3m/feed-sync/app/session"
)

const saveDebounce = 500 * time.Millisecond

// Feed is one open feed view: the ordered, duplicate-free item list for a
// (viewer, variant) pair, kept current by three producers racing through a
// single merge chokepoint. Pagination is the primary producer; change
// notifications and the polling reconciler are best-effort secondaries.
// Every merge is a read-modify-write of the item list under the instance
// lock, so producers interleave between merges, never inside one.
type Feed struct {
	viewerID string
	config   *feed.VariantConfig

	posts     PostSource
	follows   FollowSource
	resolver  StateResolver
	sessions  SessionStore
	formatter *feed.Formatter
	scorer    *feed.Scorer
	saver     *session.Debouncer

	mu          sync.Mutex
	items       []feed.Item
	cursor      int
	hasMore     bool
	lastSeen    time.Time
	err         error
	loading     bool
	closed      bool
	epoch       int
	merges      int
	cacheHit    bool
	lastTouched time.Time
	sub         *realtime.Subscription

	followIDs    []string
	followSet    map[string]bool
	followLoaded bool
}

func newFeed(viewerID string, config *feed.VariantConfig, deps Deps) *Feed {
	f := &Feed{
		viewerID:    viewerID,
		config:      config,
		posts:       deps.Posts,
		follows:     deps.Follows,
		resolver:    deps.Resolver,
		sessions:    deps.Sessions,
		formatter:   feed.NewFormatter(),
		scorer:      feed.NewScorer(config.RankWeights),
		hasMore:     true,
		lastTouched: time.Now(),
	}
	f.saver = session.NewDebouncer(saveDebounce, f.saveSnapshot)
	return f
}

// open hydrates the view from the session cache, then attaches to the
// change-notification channel. A nil notifier leaves the view on
// polling-only reconciliation.
func (f *Feed) open(ctx context.Context, notifier Notifier) {
	if record, ok := f.sessions.Load(ctx, f.viewerID, f.config.Name.CacheKey()); ok {
		f.mu.Lock()
		f.items = record.Items
		f.cursor = record.Cursor
		f.cacheHit = true
		for _, item := range record.Items {
			if t := item.DisplayTime(); t.After(f.lastSeen) {
				f.lastSeen = t
			}
		}
		f.mu.Unlock()
		slog.Debug("Feed hydrated from session cache", "viewer", f.viewerID, "variant", f.config.Name, "items", len(record.Items), "cursor", record.Cursor)
	}

	if notifier == nil {
		slog.Warn("Change notifications unavailable, feed relies on polling", "viewer", f.viewerID, "variant", f.config.Name)
		return
	}

	sub := notifier.Subscribe(func(event realtime.Event) {
		// Hub dispatch must not block on the fetch/resolve round-trips
		go f.handleEvent(context.Background(), event)
	})

	f.mu.Lock()
	f.sub = sub
	f.mu.Unlock()
}

// LoadMore fetches and merges the next page. It is a no-op while a load is
// already in flight or once the feed is exhausted; the in-flight guard is
// checked and set atomically with the rest of the state, closing the race
// between two overlapping calls. A failed load sets the error and leaves
// cursor and hasMore untouched so the caller can retry.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.closed || f.loading || !f.hasMore {
		f.mu.Unlock()
		return nil
	}
	if f.config.Filter == feed.FilterFollowing && f.viewerID == "" {
		// An unauthenticated viewer legitimately has no following feed
		f.hasMore = false
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	epoch := f.epoch
	offset := f.cursor
	pageSize := f.config.PageSize
	if offset == 0 {
		pageSize = f.config.FirstPageSize
	}
	f.mu.Unlock()

	var authors []string
	if f.config.Filter == feed.FilterFollowing {
		ids, err := f.followSetIDs(ctx)
		if err != nil {
			f.fail(epoch, err)
			return err
		}
		if len(ids) == 0 {
			f.mu.Lock()
			if !f.closed && f.epoch == epoch {
				f.loading = false
				f.hasMore = false
			}
			f.mu.Unlock()
			return nil
		}
		authors = ids
	}

	rows, err := f.posts.ListPage(ctx, database.PageFilter{
		AuthorIDs: authors,
		Limit:     pageSize,
		Offset:    offset,
	})
	if err != nil {
		f.fail(epoch, err)
		return err
	}

	items, err := f.prepare(ctx, rows)
	if err != nil {
		f.fail(epoch, err)
		return err
	}

	if f.config.Ranked {
		items = f.scorer.Run(items)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.epoch != epoch {
		// A stale completion must not touch the guard a newer load owns
		return nil
	}
	f.loading = false

	f.applyMerge(items, feed.MergeTail)
	f.cursor += len(rows)
	f.hasMore = len(rows) == pageSize
	f.err = nil
	f.raiseLastSeen(rows)

	slog.Debug("Feed page merged", "viewer", f.viewerID, "variant", f.config.Name, "rows", len(rows), "cursor", f.cursor, "has_more", f.hasMore)
	return nil
}

// Reconcile is the polling fallback for missed change notifications: it
// fetches rows newer than the high-water mark and head-merges them in
// server order. A no-op until the first page (or cache hydration)
// establishes the mark. Errors are returned for retry bookkeeping but are
// never surfaced into the view's error state.
func (f *Feed) Reconcile(ctx context.Context) error {
	f.mu.Lock()
	if f.closed || f.lastSeen.IsZero() {
		f.mu.Unlock()
		return nil
	}
	since := f.lastSeen
	epoch := f.epoch
	f.mu.Unlock()

	var authors []string
	if f.config.Filter == feed.FilterFollowing {
		if f.viewerID == "" {
			return nil
		}
		ids, err := f.followSetIDs(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		authors = ids
	}

	rows, err := f.posts.ListNewerThan(ctx, database.SinceFilter{
		AuthorIDs: authors,
		Since:     since,
		Limit:     f.config.PollLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to query rows newer than %s: %w", since, err)
	}
	if len(rows) == 0 {
		return nil
	}

	items, err := f.prepare(ctx, rows)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.epoch != epoch {
		return nil
	}

	f.applyMerge(items, feed.MergeHead)
	f.raiseLastSeen(rows)

	slog.Debug("Feed reconciled", "viewer", f.viewerID, "variant", f.config.Name, "rows", len(rows))
	return nil
}

// handleEvent processes one change notification: fetch the full row for
// the announced id and head-merge it. Duplicate and out-of-order delivery
// are absorbed by the id dedup; failures are logged and swallowed, the
// polling reconciler covers the gap.
func (f *Feed) handleEvent(ctx context.Context, event realtime.Event) {
	if event.IsReply {
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	// Before the first page load populates followSet this drops every
	// event (nil-map lookup). Intentional: the reconciler backfills
	// anything missed once the follow set is known.
	if f.config.Filter == feed.FilterFollowing && !f.followSet[event.AuthorID] {
		f.mu.Unlock()
		return
	}
	epoch := f.epoch
	f.mu.Unlock()

	row, err := f.posts.GetByID(ctx, event.NewItemID)
	if err != nil {
		slog.Debug("Change notification fetch failed", "item", event.NewItemID, "error", err)
		return
	}
	if row == nil || row.IsReply {
		return
	}

	items, err := f.prepare(ctx, []database.PostRow{*row})
	if err != nil {
		slog.Debug("Change notification resolve failed", "item", event.NewItemID, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.epoch != epoch {
		return
	}

	f.applyMerge(items, feed.MergeHead)
	if row.CreatedAt.After(f.lastSeen) {
		f.lastSeen = row.CreatedAt
	}
}

// Reset returns the view to its cold-start state and drops its session
// cache entry. In-flight fetches from before the reset are discarded when
// they complete.
func (f *Feed) Reset(ctx context.Context) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.items = nil
	f.cursor = 0
	f.hasMore = true
	f.lastSeen = time.Time{}
	f.err = nil
	f.loading = false
	f.followIDs = nil
	f.followSet = nil
	f.followLoaded = false
	f.epoch++
	f.mu.Unlock()

	f.saver.Cancel()
	if err := f.sessions.Delete(ctx, f.viewerID, f.config.Name.CacheKey()); err != nil {
		slog.Warn("Session cache delete failed", "viewer", f.viewerID, "variant", f.config.Name, "error", err)
	}
}

// Close tears the view down: the last snapshot is flushed to the session
// cache, the change subscription detached, and any fetch completing
// afterwards is discarded. Idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	f.saver.Flush()

	f.mu.Lock()
	f.closed = true
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	f.saver.Stop()
}

// Snapshot is the read surface handed to the UI layer.
type Snapshot struct {
	Items   []feed.Item
	Loading bool
	HasMore bool
	Err     error
}

func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]feed.Item, len(f.items))
	copy(items, f.items)

	return Snapshot{
		Items:   items,
		Loading: f.loading,
		HasMore: f.hasMore,
		Err:     f.err,
	}
}

func (f *Feed) ViewerID() string {
	return f.viewerID
}

func (f *Feed) Variant() feed.Variant {
	return f.config.Name
}

func (f *Feed) Cursor() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

func (f *Feed) LastSeen() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen
}

func (f *Feed) Merges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merges
}

// HydratedFromCache reports whether the view painted from the session
// cache at open.
func (f *Feed) HydratedFromCache() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cacheHit
}

// Touch records viewer activity for idle-eviction bookkeeping.
func (f *Feed) Touch() {
	f.mu.Lock()
	f.lastTouched = time.Now()
	f.mu.Unlock()
}

// IdleFor returns how long the view has gone without viewer activity.
func (f *Feed) IdleFor() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastTouched)
}

// applyMerge is the single chokepoint mutating the item list. Caller must
// hold the instance lock. Every merge schedules the debounced cache
// write-through.
func (f *Feed) applyMerge(incoming []feed.Item, position feed.MergePosition) {
	f.items = feed.Merge(f.items, incoming, position)
	f.merges++
	f.saver.Trigger()
}

// prepare turns raw rows into merge-ready items: normalize, then resolve
// viewer state against the presented (original) ids. Resolution is
// mandatory on every ingestion path; its failure fails the batch rather
// than defaulting flags to false.
func (f *Feed) prepare(ctx context.Context, rows []database.PostRow) ([]feed.Item, error) {
	items := f.formatter.Run(rows)

	states, err := f.resolver.Resolve(ctx, f.viewerID, feed.IDs(items))
	if err != nil {
		return nil, err
	}
	states.Apply(items)

	return items, nil
}

// followSetIDs returns the viewer's follow set, fetching it once per view
// lifetime and caching it in memory for the listener and poller filters.
func (f *Feed) followSetIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	if f.followLoaded {
		ids := f.followIDs
		f.mu.Unlock()
		return ids, nil
	}
	f.mu.Unlock()

	ids, err := f.follows.ListFollowing(ctx, f.viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load follow set: %w", err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	f.mu.Lock()
	f.followIDs = ids
	f.followSet = set
	f.followLoaded = true
	f.mu.Unlock()

	return ids, nil
}

func (f *Feed) fail(epoch int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.epoch != epoch {
		return
	}
	f.loading = false
	f.err = err
	slog.Warn("Feed page load failed", "viewer", f.viewerID, "variant", f.config.Name, "error", err)
}

// raiseLastSeen advances the high-water mark to the newest server
// timestamp in the batch. The mark never moves backwards.
func (f *Feed) raiseLastSeen(rows []database.PostRow) {
	for _, row := range rows {
		if row.CreatedAt.After(f.lastSeen) {
			f.lastSeen = row.CreatedAt
		}
	}
}

// saveSnapshot is the debounced write-through target.
func (f *Feed) saveSnapshot() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	record := session.NewRecord(f.items, f.cursor, time.Now())
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.sessions.Save(ctx, f.viewerID, f.config.Name.CacheKey(), record); err != nil {
		slog.Warn("Session cache write failed", "viewer", f.viewerID, "variant", f.config.Name, "error", err)
	}
}
