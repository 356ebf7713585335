package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppbooks/noveltybot/internal/crawler"
	"ppbooks/noveltybot/services/ledger"
	"ppbooks/noveltybot/services/notifier"
)

// MockListing implements crawler.ListingSource for testing
type MockListing struct {
	items []crawler.ListingItem
	err   error
}

var _ crawler.ListingSource = (*MockListing)(nil)

func (m *MockListing) FetchListing(context.Context) ([]crawler.ListingItem, error) {
	return m.items, m.err
}

// MockDetails implements crawler.DetailSource for testing
type MockDetails struct {
	mu      sync.Mutex
	details map[string]*crawler.ProductDetails
	errs    map[string]error
	panics  map[string]bool
	fetched []string
}

var _ crawler.DetailSource = (*MockDetails)(nil)

func NewMockDetails() *MockDetails {
	return &MockDetails{
		details: make(map[string]*crawler.ProductDetails),
		errs:    make(map[string]error),
		panics:  make(map[string]bool),
	}
}

func (m *MockDetails) FetchDetails(_ context.Context, item crawler.ListingItem) (*crawler.ProductDetails, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, item.DetailURL)
	m.mu.Unlock()

	if m.panics[item.DetailURL] {
		panic("unexpected markup")
	}
	if err, ok := m.errs[item.DetailURL]; ok {
		return nil, err
	}
	if d, ok := m.details[item.DetailURL]; ok {
		return d, nil
	}
	image := item.ThumbnailURL
	return &crawler.ProductDetails{Title: "Book " + item.DetailURL, Price: "100 ₴", ImageURL: image}, nil
}

// MockLedger implements ledger.Ledger in memory
type MockLedger struct {
	set     ledger.URLSet
	loadErr error
	saveErr error
	saves   int
}

var _ ledger.Ledger = (*MockLedger)(nil)

func NewMockLedger(urls ...string) *MockLedger {
	return &MockLedger{set: ledger.NewURLSet(urls...)}
}

func (m *MockLedger) Load(context.Context) (ledger.URLSet, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.set.Union(nil), nil
}

func (m *MockLedger) Save(_ context.Context, set ledger.URLSet) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.set = set.Union(nil)
	return nil
}

// MockNotifier implements notifier.Notifier for testing
type MockNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
	err  error
}

var _ notifier.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(_ context.Context, n notifier.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

type notifierFunc func(ctx context.Context, n notifier.Notification) error

func (f notifierFunc) Notify(ctx context.Context, n notifier.Notification) error {
	return f(ctx, n)
}

func newTestWorker(listing *MockListing, details *MockDetails, l *MockLedger, n *MockNotifier) (*Worker, *[]time.Duration) {
	w := NewWorker(listing, details, l, n, time.Second)
	var sleeps []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) {
		sleeps = append(sleeps, d)
	}
	return w, &sleeps
}

func TestRunSkipsItemsAlreadyInLedger(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{
		{DetailURL: "https://a", ThumbnailURL: "https://a.jpg"},
		{DetailURL: "https://b"},
		{DetailURL: "https://c", ThumbnailURL: "https://c.jpg"},
	}}
	details := NewMockDetails()
	l := NewMockLedger("https://b", "https://old")
	n := &MockNotifier{}

	w, sleeps := newTestWorker(listing, details, l, n)
	summary := w.Run(context.Background())

	assert.Equal(t, []string{"https://a", "https://c"}, details.fetched)
	require.Len(t, n.sent, 2)
	assert.Equal(t, "https://a", n.sent[0].ItemURL)
	assert.Equal(t, "https://a.jpg", n.sent[0].ImageURL)
	assert.Equal(t, "https://c", n.sent[1].ItemURL)

	assert.Equal(t, []string{"https://a", "https://b", "https://c", "https://old"}, l.set.Sorted())
	assert.Equal(t, 1, l.saves)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *sleeps)

	assert.Equal(t, 3, summary.Listed)
	assert.Equal(t, 1, summary.SkippedSeen)
	assert.Equal(t, 2, summary.Sent)
	assert.True(t, summary.LedgerSaved)
	assert.False(t, summary.Degraded())
}

func TestRunIsIdempotent(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{
		{DetailURL: "https://a"},
		{DetailURL: "https://b"},
	}}
	l := NewMockLedger()
	n := &MockNotifier{}

	w, _ := newTestWorker(listing, NewMockDetails(), l, n)
	first := w.Run(context.Background())
	assert.Equal(t, 2, first.Sent)

	details := NewMockDetails()
	w, _ = newTestWorker(listing, details, l, n)
	second := w.Run(context.Background())

	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 2, second.SkippedSeen)
	assert.Empty(t, details.fetched)
	assert.Len(t, n.sent, 2)
	// nothing new, nothing written
	assert.Equal(t, 1, l.saves)
}

func TestRunNeverTouchesEmptyDetailURLs(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{
		{DetailURL: "", ThumbnailURL: "https://orphan.jpg"},
		{DetailURL: "https://a"},
		{},
	}}
	details := NewMockDetails()
	l := NewMockLedger()
	n := &MockNotifier{}

	w, _ := newTestWorker(listing, details, l, n)
	summary := w.Run(context.Background())

	assert.Equal(t, []string{"https://a"}, details.fetched)
	assert.Len(t, n.sent, 1)
	assert.False(t, l.set.Has(""))
	assert.Equal(t, 1, l.set.Len())
	assert.Equal(t, 2, summary.SkippedEmpty)
}

func TestRunSkipsItemWhenDetailFetchFails(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{
		{DetailURL: "https://a"},
		{DetailURL: "https://broken"},
		{DetailURL: "https://c"},
	}}
	details := NewMockDetails()
	details.errs["https://broken"] = errors.New("connection reset")
	l := NewMockLedger()
	n := &MockNotifier{}

	w, sleeps := newTestWorker(listing, details, l, n)
	summary := w.Run(context.Background())

	require.Len(t, n.sent, 2)
	assert.Equal(t, "https://a", n.sent[0].ItemURL)
	assert.Equal(t, "https://c", n.sent[1].ItemURL)
	assert.Equal(t, []string{"https://a", "https://c"}, l.set.Sorted())
	assert.Len(t, *sleeps, 2)

	assert.Equal(t, 1, summary.DetailFailed)
	assert.True(t, summary.LedgerSaved)
	assert.True(t, summary.Degraded())
}

func TestRunRecoversFromPanickingItem(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{
		{DetailURL: "https://boom"},
		{DetailURL: "https://b"},
	}}
	details := NewMockDetails()
	details.panics["https://boom"] = true
	l := NewMockLedger()
	n := &MockNotifier{}

	w, _ := newTestWorker(listing, details, l, n)
	summary := w.Run(context.Background())

	require.Len(t, n.sent, 1)
	assert.Equal(t, "https://b", n.sent[0].ItemURL)
	assert.Equal(t, []string{"https://b"}, l.set.Sorted())
	assert.Equal(t, 1, summary.DetailFailed)
}

func TestRunRecordsItemEvenWhenNotifyFails(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{{DetailURL: "https://a"}}}
	l := NewMockLedger()
	n := &MockNotifier{err: errors.New("telegram down")}

	w, _ := newTestWorker(listing, NewMockDetails(), l, n)
	summary := w.Run(context.Background())

	assert.True(t, l.set.Has("https://a"))
	assert.Equal(t, 1, summary.NotifyErrors)
	assert.Equal(t, 0, summary.Sent)
	assert.True(t, summary.Degraded())
}

func TestRunCountsOnlySuccessfulNotifications(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{{DetailURL: "https://a"}, {DetailURL: "https://b"}}}
	l := NewMockLedger()
	n := &MockNotifier{}

	w, _ := newTestWorker(listing, NewMockDetails(), l, n)
	w.notifier = notifierFunc(func(_ context.Context, msg notifier.Notification) error {
		if msg.ItemURL == "https://b" {
			return errors.New("chat not found")
		}
		return n.Notify(context.Background(), msg)
	})
	summary := w.Run(context.Background())

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.NotifyErrors)
	assert.Equal(t, []string{"https://a", "https://b"}, l.set.Sorted())
}

func TestRunStopsWhenLedgerUnavailable(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{{DetailURL: "https://a"}, {DetailURL: "https://b"}}}
	details := NewMockDetails()
	l := NewMockLedger("https://a")
	l.loadErr = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	n := &MockNotifier{}

	w, sleeps := newTestWorker(listing, details, l, n)
	summary := w.Run(context.Background())

	assert.Empty(t, n.sent)
	assert.Empty(t, details.fetched)
	assert.Empty(t, *sleeps)
	assert.Equal(t, 0, l.saves)

	assert.Equal(t, 2, summary.Listed)
	assert.Equal(t, 0, summary.Sent)
	assert.True(t, summary.LedgerError)
	assert.False(t, summary.LedgerSaved)
	assert.True(t, summary.Degraded())
}

func TestRunListingFailure(t *testing.T) {
	l := NewMockLedger()
	n := &MockNotifier{}
	w, _ := newTestWorker(&MockListing{err: errors.New("timeout")}, NewMockDetails(), l, n)

	summary := w.Run(context.Background())
	assert.True(t, summary.ListingFailed)
	assert.True(t, summary.Degraded())
	assert.Empty(t, n.sent)
	assert.Equal(t, 0, l.saves)
}

func TestRunEmptyListing(t *testing.T) {
	l := NewMockLedger()
	w, _ := newTestWorker(&MockListing{}, NewMockDetails(), l, &MockNotifier{})

	summary := w.Run(context.Background())
	assert.False(t, summary.Degraded())
	assert.Equal(t, 0, summary.Listed)
	assert.Equal(t, 0, l.saves)
}

func TestRunLedgerSaveFailureIsNonFatal(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{{DetailURL: "https://a"}, {DetailURL: "https://b"}}}
	l := NewMockLedger()
	l.saveErr = errors.New("read-only file system")
	n := &MockNotifier{}

	w, _ := newTestWorker(listing, NewMockDetails(), l, n)
	summary := w.Run(context.Background())

	assert.Len(t, n.sent, 2)
	assert.True(t, summary.LedgerError)
	assert.False(t, summary.LedgerSaved)
	assert.True(t, summary.Degraded())
}

func TestRunDeduplicatesWithinListing(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{{DetailURL: "https://a"}, {DetailURL: "https://a"}}}
	n := &MockNotifier{}

	w, _ := newTestWorker(listing, NewMockDetails(), NewMockLedger(), n)
	summary := w.Run(context.Background())

	assert.Len(t, n.sent, 1)
	assert.Equal(t, 1, summary.SkippedSeen)
}

func TestRunStopsWhenCancelledButSavesProgress(t *testing.T) {
	listing := &MockListing{items: []crawler.ListingItem{{DetailURL: "https://a"}, {DetailURL: "https://b"}}}
	l := NewMockLedger()
	n := &MockNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	w, _ := newTestWorker(listing, NewMockDetails(), l, n)
	w.sleep = func(context.Context, time.Duration) { cancel() }

	w.Run(ctx)
	assert.Len(t, n.sent, 1)
	assert.Equal(t, []string{"https://a"}, l.set.Sorted())
}

func TestSleepContext(t *testing.T) {
	start := time.Now()
	sleepContext(context.Background(), 20*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	sleepContext(ctx, time.Hour)
	assert.Less(t, time.Since(start), time.Second)
}
