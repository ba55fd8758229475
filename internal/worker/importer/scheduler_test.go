package importer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/snoozies/dreamyhaven/internal/model"
)

// mockFetcher はSourceFetcherのテスト用モック。
type mockFetcher struct {
	fetchFunc func(ctx context.Context, src *model.ImportSource) (model.ImportResult, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, src *model.ImportSource) (model.ImportResult, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, src)
	}
	return model.ImportResult{}, nil
}

func dueSources(n int) []*model.ImportSource {
	sources := make([]*model.ImportSource, n)
	for i := range sources {
		sources[i] = &model.ImportSource{ID: string(rune('a' + i)), FetchStatus: model.FetchStatusActive}
	}
	return sources
}

func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	s := NewScheduler(&mockSourceRepo{}, &mockFetcher{}, nil, nil, 0)
	if s.maxConcurrency != 4 {
		t.Errorf("maxConcurrency = %d, want 4", s.maxConcurrency)
	}
}

func TestScheduler_RunOnce_AggregatesResults(t *testing.T) {
	repo := &mockSourceRepo{listDueForFetchFunc: func(context.Context) ([]*model.ImportSource, error) {
		return dueSources(3), nil
	}}
	fetcher := &mockFetcher{fetchFunc: func(_ context.Context, src *model.ImportSource) (model.ImportResult, error) {
		if src.ID == "b" {
			return model.ImportResult{Skipped: 1}, errors.New("store unavailable")
		}
		return model.ImportResult{Imported: 2, Skipped: 1}, nil
	}}
	collector := &mockCollector{}

	if err := NewScheduler(repo, fetcher, collector, nil, 2).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce err=%v", err)
	}
	if collector.imported != 4 || collector.skipped != 3 {
		t.Errorf("recorded imported/skipped = %d/%d, want 4/3", collector.imported, collector.skipped)
	}
}

func TestScheduler_RunOnce_LimitsConcurrency(t *testing.T) {
	repo := &mockSourceRepo{listDueForFetchFunc: func(context.Context) ([]*model.ImportSource, error) {
		return dueSources(8), nil
	}}
	var running, peak int32
	fetcher := &mockFetcher{fetchFunc: func(context.Context, *model.ImportSource) (model.ImportResult, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return model.ImportResult{}, nil
	}}

	if err := NewScheduler(repo, fetcher, nil, nil, 3).RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce err=%v", err)
	}
	if got := atomic.LoadInt32(&peak); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
}

func TestScheduler_RunOnce_ListError(t *testing.T) {
	repo := &mockSourceRepo{listDueForFetchFunc: func(context.Context) ([]*model.ImportSource, error) {
		return nil, errors.New("db down")
	}}

	if err := NewScheduler(repo, &mockFetcher{}, nil, nil, 1).RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&mockSourceRepo{}, &mockFetcher{}, nil, nil, 1)
	if err := s.Start(context.Background(), "every now and then"); err == nil {
		t.Fatal("expected error for an invalid cron expression")
	}
}

func TestScheduler_Start_RunsImmediatelyAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	calls := 0
	listed := make(chan struct{}, 1)
	repo := &mockSourceRepo{listDueForFetchFunc: func(context.Context) ([]*model.ImportSource, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case listed <- struct{}{}:
		default:
		}
		return nil, nil
	}}
	s := NewScheduler(repo, &mockFetcher{}, nil, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "@every 1h") }()

	select {
	case <-listed:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run on start")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("ListDueForFetch calls = %d, want 1", calls)
	}
}
