package relay_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/infra/adapter/persistence/flatfile"
	"feed-relay/internal/infra/adapter/persistence/itemstore"
	"feed-relay/internal/repository"
	"feed-relay/internal/usecase/relay"
)

type scriptedPoller struct {
	snapshots [][]*entity.Item
	calls     int
}

func (p *scriptedPoller) Poll(ctx context.Context) ([]*entity.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := min(p.calls, len(p.snapshots)-1)
	p.calls++
	// Fresh items every poll, as a real fetch would return.
	out := make([]*entity.Item, len(p.snapshots[i]))
	for j, it := range p.snapshots[i] {
		out[j] = entity.NewItem(it.GUID, it.Title, it.Link, it.Description)
	}
	return out, nil
}

type recordingQueue struct {
	mu    sync.Mutex
	guids []string
}

func (q *recordingQueue) Enqueue(item *entity.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.guids = append(q.guids, item.GUID)
}

type recordingSleeper struct {
	delays []time.Duration
	cancel context.CancelFunc
	after  int
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	if s.cancel != nil && len(s.delays) >= s.after {
		s.cancel()
	}
	return ctx.Err()
}

type cycleRecorder struct {
	cycles   int
	newItems []int
	marked   int
	removed  int
}

func (c *cycleRecorder) ObserveCycle(_ time.Duration, n int, _ time.Duration) {
	c.cycles++
	c.newItems = append(c.newItems, n)
}
func (c *cycleRecorder) ObserveHistoryMarked(n int) { c.marked += n }
func (c *cycleRecorder) ObserveCleanup(n int)       { c.removed += n }

func items(guids ...string) []*entity.Item {
	out := make([]*entity.Item, len(guids))
	for i, g := range guids {
		out[i] = entity.NewItem(g, "T "+g, "https://www.phoronix.com/"+g, "D "+g)
	}
	return out
}

func newStore(t *testing.T) *itemstore.Store {
	t.Helper()
	return itemstore.New(flatfile.New(filepath.Join(t.TempDir(), "news")))
}

func guidsOf(list []*entity.Item) []string {
	out := make([]string, len(list))
	for i, it := range list {
		out[i] = it.GUID
	}
	return out
}

func TestConfig_FloodDelay(t *testing.T) {
	cfg := relay.DefaultConfig()
	assert.Equal(t, 600*time.Second, cfg.FloodDelay(4))
	assert.Equal(t, time.Duration(0), cfg.FloodDelay(3))
	assert.Equal(t, time.Duration(0), cfg.FloodDelay(0))
}

func TestRunCycle_FloodControl(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{items("a", "b", "c", "d")}}
	queue := &recordingQueue{}
	sleeper := &recordingSleeper{}

	svc := relay.NewService(store, poller, queue, relay.DefaultConfig(), relay.WithSleeper(sleeper.sleep))
	require.NoError(t, svc.RunCycle(context.Background()))

	assert.Equal(t, []string{"a", "b", "c", "d"}, queue.guids)
	want := []time.Duration{600 * time.Second, 600 * time.Second, 600 * time.Second, 600 * time.Second, 120 * time.Second}
	if diff := cmp.Diff(want, sleeper.delays); diff != "" {
		t.Errorf("sleep schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCycle_NoFloodSleepsZeroBetweenItems(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{items("a", "b", "c")}}
	queue := &recordingQueue{}
	sleeper := &recordingSleeper{}

	svc := relay.NewService(store, poller, queue, relay.DefaultConfig(), relay.WithSleeper(sleeper.sleep))
	require.NoError(t, svc.RunCycle(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, queue.guids)
	assert.Equal(t, []time.Duration{0, 0, 0, 120 * time.Second}, sleeper.delays)
}

func TestRunCycle_SkipsSentAndMergesDelta(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{
		items("a", "b"),
		items("b", "c"),
	}}
	queue := &recordingQueue{}
	sleeper := &recordingSleeper{}
	obs := &cycleRecorder{}

	svc := relay.NewService(store, poller, queue, relay.DefaultConfig(),
		relay.WithSleeper(sleeper.sleep), relay.WithObserver(obs))

	require.NoError(t, svc.RunCycle(context.Background()))
	for _, it := range store.Items() {
		require.NoError(t, store.UpdateStatus(context.Background(), it, entity.StatusSent))
	}

	queue.guids = nil
	require.NoError(t, svc.RunCycle(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, guidsOf(store.Items()))
	assert.Equal(t, []string{"c"}, queue.guids)
	assert.Equal(t, []int{2, 1}, obs.newItems)
}

func TestRunCycle_FailedItemsAreOfferedAgain(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{items("a")}}
	queue := &recordingQueue{}
	sleeper := &recordingSleeper{}

	svc := relay.NewService(store, poller, queue, relay.DefaultConfig(), relay.WithSleeper(sleeper.sleep))
	require.NoError(t, svc.RunCycle(context.Background()))
	require.NoError(t, store.UpdateStatus(context.Background(), store.Items()[0], entity.StatusFailed))
	require.NoError(t, svc.RunCycle(context.Background()))

	assert.Equal(t, []string{"a", "a"}, queue.guids)
}

type stubHistory struct {
	guids []string
	err   error
}

func (h *stubHistory) Sync(ctx context.Context, repo repository.ItemRepository) (int, error) {
	if h.err != nil {
		return 0, h.err
	}
	n := 0
	for _, it := range repo.Items() {
		for _, g := range h.guids {
			if it.GUID == g {
				if err := repo.UpdateStatus(ctx, it, entity.StatusSent); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}

func TestStartup_LoadsMergesAndSyncsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news")
	seed := itemstore.New(flatfile.New(path))
	require.NoError(t, seed.Replace(context.Background(), items("a")))

	store := itemstore.New(flatfile.New(path))
	poller := &scriptedPoller{snapshots: [][]*entity.Item{items("a", "b", "c")}}
	obs := &cycleRecorder{}

	svc := relay.NewService(store, poller, &recordingQueue{}, relay.DefaultConfig(),
		relay.WithHistory(&stubHistory{guids: []string{"b"}}),
		relay.WithObserver(obs))
	require.NoError(t, svc.Startup(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, guidsOf(store.Items()))
	assert.Equal(t, []string{"a", "c"}, guidsOf(store.Pending()))
	assert.Equal(t, 1, obs.marked)

	reloaded := itemstore.New(flatfile.New(path))
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, []string{"a", "c"}, guidsOf(reloaded.Pending()))
}

func TestStartup_HistoryFailureIsTolerated(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{items("a")}}

	svc := relay.NewService(store, poller, &recordingQueue{}, relay.DefaultConfig(),
		relay.WithHistory(&stubHistory{err: errors.New("api down")}))
	require.NoError(t, svc.Startup(context.Background()))
	assert.Equal(t, 1, store.Len())
}

func TestStartup_InvalidStatusIsFatal(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{items("a")}}

	svc := relay.NewService(store, poller, &recordingQueue{}, relay.DefaultConfig(),
		relay.WithHistory(&stubHistory{err: entity.ErrInvalidStatus}))
	assert.ErrorIs(t, svc.Startup(context.Background()), entity.ErrInvalidStatus)
}

func TestRunCycle_RequestedCleanupRunsOnNextCycle(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{
		items("x", "y", "a", "b"),
		items("a", "b"),
	}}
	sleeper := &recordingSleeper{}
	obs := &cycleRecorder{}
	cfg := relay.DefaultConfig()
	cfg.CleanupKeep = 2

	svc := relay.NewService(store, poller, &recordingQueue{}, cfg,
		relay.WithSleeper(sleeper.sleep), relay.WithObserver(obs))
	require.NoError(t, svc.RunCycle(context.Background()))
	for _, it := range store.Items() {
		require.NoError(t, store.UpdateStatus(context.Background(), it, entity.StatusSent))
	}

	svc.RequestCleanup()
	require.NoError(t, svc.RunCycle(context.Background()))

	// The kept tail still overlaps the feed, so nothing is re-added.
	assert.Equal(t, []string{"a", "b"}, guidsOf(store.Items()))
	assert.Equal(t, 2, obs.removed)

	require.NoError(t, svc.RunCycle(context.Background()))
	assert.Equal(t, 2, obs.removed, "cleanup runs once per request")
	assert.Equal(t, []string{"a", "b"}, guidsOf(store.Items()))
}

func TestRun_StopsOnCancellation(t *testing.T) {
	store := newStore(t)
	poller := &scriptedPoller{snapshots: [][]*entity.Item{items("a")}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &recordingSleeper{cancel: cancel, after: 4}

	svc := relay.NewService(store, poller, &recordingQueue{}, relay.DefaultConfig(), relay.WithSleeper(sleeper.sleep))
	require.NoError(t, svc.Run(ctx))

	// Two full cycles: one item pause and one cycle pause each.
	assert.Equal(t, []time.Duration{0, 120 * time.Second, 0, 120 * time.Second}, sleeper.delays)
	assert.Equal(t, 2, poller.calls)
}
