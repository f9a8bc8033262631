package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/core/ports"
)

type fakeBackend struct {
	name    string
	results []domain.SearchResult
	err     error
	delay   time.Duration
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(ctx context.Context, _ string, _ map[string]any, _ int) ([]domain.SearchResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestDispatchCollectsAllBackendsInOrder(t *testing.T) {
	coordinator := NewFanoutCoordinator([]ports.SearchBackend{
		&fakeBackend{name: "semantic", results: []domain.SearchResult{{ChunkID: "c1"}}},
		&fakeBackend{name: "keyword", results: []domain.SearchResult{{ChunkID: "c2"}, {ChunkID: "c3"}}},
		&fakeBackend{name: "analytics"},
	}, FanoutConfig{Timeout: time.Second})

	responses := coordinator.Dispatch(context.Background(), domain.Query{Text: "q", Limit: 10})

	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	for i, want := range []string{"semantic", "keyword", "analytics"} {
		if responses[i].SourceName != want {
			t.Fatalf("expected response %d from %s, got %s", i, want, responses[i].SourceName)
		}
	}
	if !responses[0].OK() || !responses[1].OK() || !responses[2].OK() {
		t.Fatalf("expected all backends ok: %+v", responses)
	}
}

func TestDispatchStampsRanksAndSource(t *testing.T) {
	coordinator := NewFanoutCoordinator([]ports.SearchBackend{
		&fakeBackend{name: "keyword", results: []domain.SearchResult{{ChunkID: "c1"}, {ChunkID: "c2"}}},
	}, FanoutConfig{Timeout: time.Second})

	responses := coordinator.Dispatch(context.Background(), domain.Query{Text: "q"})

	for i, r := range responses[0].Results {
		if r.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, r.Rank)
		}
		if len(r.Sources) != 1 || r.Sources[0] != "keyword" {
			t.Fatalf("expected source keyword, got %v", r.Sources)
		}
	}
}

func TestDispatchTimeoutSettlesAsError(t *testing.T) {
	coordinator := NewFanoutCoordinator([]ports.SearchBackend{
		&fakeBackend{name: "semantic", results: []domain.SearchResult{{ChunkID: "c1"}}},
		&fakeBackend{name: "keyword", delay: 500 * time.Millisecond, results: []domain.SearchResult{{ChunkID: "late"}}},
	}, FanoutConfig{Timeout: 30 * time.Millisecond})

	responses := coordinator.Dispatch(context.Background(), domain.Query{Text: "q"})

	if !responses[0].OK() {
		t.Fatalf("expected fast backend to succeed: %v", responses[0].Err)
	}
	if responses[1].OK() {
		t.Fatalf("expected slow backend to settle as error")
	}
	if !domain.IsKind(responses[1].Err, domain.ErrAdapter) {
		t.Fatalf("expected adapter error kind, got %v", responses[1].Err)
	}
	if len(responses[1].Results) != 0 {
		t.Fatalf("late results must be discarded, got %v", responses[1].Results)
	}
}

func TestDispatchBackendErrorDoesNotFailOthers(t *testing.T) {
	coordinator := NewFanoutCoordinator([]ports.SearchBackend{
		&fakeBackend{name: "semantic", err: errors.New("connection refused")},
		&fakeBackend{name: "keyword", results: []domain.SearchResult{{ChunkID: "c1"}}},
	}, FanoutConfig{Timeout: time.Second})

	responses := coordinator.Dispatch(context.Background(), domain.Query{Text: "q"})

	if responses[0].OK() {
		t.Fatalf("expected semantic to fail")
	}
	if !responses[1].OK() {
		t.Fatalf("expected keyword to succeed: %v", responses[1].Err)
	}
}

func TestDispatchHonorsCallerCancellation(t *testing.T) {
	coordinator := NewFanoutCoordinator([]ports.SearchBackend{
		&fakeBackend{name: "semantic", delay: time.Second},
	}, FanoutConfig{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	responses := coordinator.Dispatch(ctx, domain.Query{Text: "q"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled dispatch took too long: %v", elapsed)
	}
	if responses[0].OK() {
		t.Fatalf("expected cancelled branch to settle as error")
	}
}
