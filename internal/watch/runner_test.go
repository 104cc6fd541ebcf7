package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyablePage    = `<html><body><button name="add-to-cart">Add to Cart</button></body></html>`
	outOfStockPage = `<html><body><p>Out of Stock</p></body></html>`
)

type stubFetcher struct {
	attempts int
	fails    int
	body     string
}

func (f *stubFetcher) Fetch(_ context.Context, request FetchRequest) (FetchResponse, error) {
	f.attempts++
	if f.attempts <= f.fails {
		return FetchResponse{}, errors.New("connection refused")
	}
	return FetchResponse{
		URL:        request.URL,
		StatusCode: 200,
		Body:       []byte(f.body),
	}, nil
}

type memStore struct {
	loaded    State
	saved     *State
	saveCalls int
	saveErr   error
}

func (s *memStore) Load(_ context.Context) (State, error) {
	if s.loaded.LastStatus == "" {
		s.loaded.LastStatus = StatusUnknown
	}
	return s.loaded, nil
}

func (s *memStore) Save(_ context.Context, state State) error {
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := state
	s.saved = &cp
	return nil
}

type recordingNotifier struct {
	calls []Notification
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) error {
	n.calls = append(n.calls, notification)
	return n.err
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func fastPolicy(attempts int) *RetryPolicy {
	return NewRetryPolicy(attempts, time.Millisecond, 2*time.Millisecond)
}

func newTestRunner(
	fetcher Fetcher,
	store Store,
	notifier Notifier,
	clock Clock,
	dryRun bool,
) *Runner {
	return NewRunner(
		fetcher,
		NewClassifier(ProfileGeneric),
		store,
		notifier,
		fastPolicy(3),
		clock,
		RunnerConfig{URL: "https://shop.example/p/1", DryRun: dryRun},
		nil,
	)
}

func TestRunnerFirstRunOutOfStock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	store := &memStore{}
	notifier := &recordingNotifier{}
	runner := newTestRunner(&stubFetcher{body: outOfStockPage}, store, notifier, fixedClock{now: now}, false)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusNotBuyable, result.Verdict.Status)
	assert.Equal(t, ReasonOutOfStock, result.Verdict.Reason)
	assert.False(t, result.Notified)
	assert.Empty(t, notifier.calls)

	require.NotNil(t, store.saved)
	assert.Equal(t, StatusNotBuyable, store.saved.LastStatus)
	assert.Equal(t, now, store.saved.LastCheckedAt)
	assert.Nil(t, store.saved.LastNotifiedAt)
}

func TestRunnerNotifiesOnRestock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	store := &memStore{loaded: State{LastStatus: StatusNotBuyable}}
	notifier := &recordingNotifier{}
	runner := newTestRunner(&stubFetcher{body: buyablePage}, store, notifier, fixedClock{now: now}, false)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusBuyable, result.Verdict.Status)
	assert.True(t, result.Notified)

	require.Len(t, notifier.calls, 1)
	sent := notifier.calls[0]
	assert.Equal(t, StatusBuyable, sent.Status)
	assert.Equal(t, ReasonControlEnabled, sent.Reason)
	assert.Equal(t, "https://shop.example/p/1", sent.URL)
	assert.Equal(t, result.RunID, sent.RunID)

	require.NotNil(t, store.saved)
	require.NotNil(t, store.saved.LastNotifiedAt)
	assert.Equal(t, now, *store.saved.LastNotifiedAt)
}

func TestRunnerNotifiesOnFirstEverBuyable(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	notifier := &recordingNotifier{}
	runner := newTestRunner(&stubFetcher{body: buyablePage}, store, notifier, fixedClock{now: time.Now().UTC()}, false)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Notified)
	assert.Len(t, notifier.calls, 1)
}

func TestRunnerRepeatBuyableStaysQuiet(t *testing.T) {
	t.Parallel()

	earlier := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	store := &memStore{loaded: State{
		LastStatus:     StatusBuyable,
		LastCheckedAt:  earlier,
		LastNotifiedAt: &earlier,
	}}
	notifier := &recordingNotifier{}
	runner := newTestRunner(&stubFetcher{body: buyablePage}, store, notifier, fixedClock{now: now}, false)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Notified)
	assert.Empty(t, notifier.calls)

	require.NotNil(t, store.saved)
	assert.Equal(t, now, store.saved.LastCheckedAt)
	require.NotNil(t, store.saved.LastNotifiedAt)
	assert.Equal(t, earlier, *store.saved.LastNotifiedAt, "last_notified_at must carry over unchanged")
}

func TestRunnerFetchExhaustionLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{fails: 10}
	store := &memStore{}
	runner := newTestRunner(fetcher, store, &recordingNotifier{}, fixedClock{now: time.Now().UTC()}, false)

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchExhausted)
	assert.Equal(t, 3, fetcher.attempts)
	assert.Zero(t, store.saveCalls, "a failed fetch must not overwrite the last verdict")
}

func TestRunnerDryRunSuppressesDelivery(t *testing.T) {
	t.Parallel()

	store := &memStore{loaded: State{LastStatus: StatusNotBuyable}}
	notifier := &recordingNotifier{}
	runner := newTestRunner(&stubFetcher{body: buyablePage}, store, notifier, fixedClock{now: time.Now().UTC()}, true)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Notified)
	assert.Empty(t, notifier.calls)
	require.NotNil(t, store.saved)
	assert.Nil(t, store.saved.LastNotifiedAt, "suppressed delivery is not an attempt")
	assert.Equal(t, StatusBuyable, store.saved.LastStatus)
}

func TestRunnerMissingWebhookSkipsDelivery(t *testing.T) {
	t.Parallel()

	store := &memStore{loaded: State{LastStatus: StatusNotBuyable}}
	runner := newTestRunner(&stubFetcher{body: buyablePage}, store, nil, fixedClock{now: time.Now().UTC()}, false)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Notified)
	require.NotNil(t, store.saved)
	assert.Nil(t, store.saved.LastNotifiedAt)
}

func TestRunnerDeliveryFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	store := &memStore{loaded: State{LastStatus: StatusNotBuyable}}
	notifier := &recordingNotifier{err: errors.New("webhook unreachable")}
	runner := newTestRunner(&stubFetcher{body: buyablePage}, store, notifier, fixedClock{now: now}, false)

	result, err := runner.Run(context.Background())
	require.NoError(t, err, "delivery failure must not fail the run")

	assert.True(t, result.Notified, "delivery was attempted")
	require.NotNil(t, store.saved)
	require.NotNil(t, store.saved.LastNotifiedAt)
	assert.Equal(t, now, *store.saved.LastNotifiedAt)
}

func TestRunnerStateWriteFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := &memStore{saveErr: errors.New("read-only filesystem")}
	runner := newTestRunner(&stubFetcher{body: buyablePage}, store, nil, fixedClock{now: time.Now().UTC()}, false)

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist state")
}
