package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/shirabe/internal/cache"
	"github.com/hyperjump/shirabe/internal/fingerprint"
	"github.com/hyperjump/shirabe/internal/index"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/producer"
	"github.com/hyperjump/shirabe/internal/storage"
)

const testDims = 4

type fixture struct {
	coord    *Coordinator
	storage  *storage.SQLiteStorage
	cache    *cache.MemoryCache
	index    *index.Index
	producer *producer.MockProducer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	vc := cache.NewMemoryCache()
	idx, err := index.New(testDims)
	if err != nil {
		t.Fatal(err)
	}
	prod := producer.NewMockProducer(testDims)
	coord := New(store, vc, fingerprint.NewStore(vc), idx, prod, Options{
		Workers:        2,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	return &fixture{coord: coord, storage: store, cache: vc, index: idx, producer: prod}
}

func input(id, text string) *models.DocumentInput {
	return &models.DocumentInput{ID: id, Title: id + ".txt", Text: text}
}

func TestSyncDocumentFirstSeen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if f.coord.State("a") != StateUnknown {
		t.Error("fresh document should be unknown")
	}
	if err := f.coord.SyncDocument(ctx, input("a", "cats are great")); err != nil {
		t.Fatal(err)
	}
	if f.coord.State("a") != StateUpToDate {
		t.Errorf("state = %v", f.coord.State("a"))
	}
	if !f.index.Contains("a") {
		t.Error("document not indexed")
	}
	if f.producer.Calls() != 1 {
		t.Errorf("producer calls = %d", f.producer.Calls())
	}
}

func TestSyncDocumentUnchangedSkipsProducer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.coord.SyncDocument(ctx, input("a", "cats are great")); err != nil {
		t.Fatal(err)
	}
	digest := fingerprint.Hash("cats are great")
	first, ok, _ := f.cache.Get(ctx, "a", digest)
	if !ok {
		t.Fatal("record not cached")
	}

	// Second pass with identical text: producer must not be invoked again.
	if err := f.coord.SyncDocument(ctx, input("a", "cats are great")); err != nil {
		t.Fatal(err)
	}
	if f.producer.Calls() != 1 {
		t.Errorf("producer calls = %d, want 1 (no recomputation)", f.producer.Calls())
	}
	second, _, _ := f.cache.Get(ctx, "a", digest)
	for i := range first.Vector {
		if first.Vector[i] != second.Vector[i] {
			t.Fatal("cached vector changed across passes")
		}
	}
}

func TestSyncDocumentChangedRegenerates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.coord.SyncDocument(ctx, input("a", "old text"))
	if err := f.coord.SyncDocument(ctx, input("a", "new text")); err != nil {
		t.Fatal(err)
	}
	if f.producer.Calls() != 2 {
		t.Errorf("producer calls = %d, want 2", f.producer.Calls())
	}

	// Old record is superseded; the new digest serves the new vector.
	if _, ok, _ := f.cache.Get(ctx, "a", fingerprint.Hash("old text")); ok {
		t.Error("old record still valid")
	}
	if _, ok, _ := f.cache.Get(ctx, "a", fingerprint.Hash("new text")); !ok {
		t.Error("new record missing")
	}
	if f.coord.State("a") != StateUpToDate {
		t.Errorf("state = %v", f.coord.State("a"))
	}
}

func TestProducerFailureRetainsPreviousRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.coord.SyncDocument(ctx, input("x", "version one")); err != nil {
		t.Fatal(err)
	}

	f.producer.FailWith("version two", errors.New("model overloaded"))
	err := f.coord.SyncDocument(ctx, input("x", "version two"))
	if err == nil {
		t.Fatal("expected sync error")
	}
	if f.coord.State("x") != StateStale {
		t.Errorf("state = %v, want stale", f.coord.State("x"))
	}
	// The previous vector is still served for queries.
	if !f.index.Contains("x") {
		t.Error("previous record dropped from index")
	}
	if _, ok, _ := f.cache.Get(ctx, "x", fingerprint.Hash("version one")); !ok {
		t.Error("previous cache record lost")
	}

	// Next pass retries: the producer recovered, the doc becomes up to date.
	prod2 := producer.NewMockProducer(testDims)
	f.coord.producer = prod2
	if err := f.coord.SyncDocument(ctx, input("x", "version two")); err != nil {
		t.Fatal(err)
	}
	if f.coord.State("x") != StateUpToDate {
		t.Errorf("state after retry = %v", f.coord.State("x"))
	}
}

func TestCacheWriteFailureIsSurfaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.cache.FailPuts = errors.New("disk full")
	err := f.coord.SyncDocument(ctx, input("a", "some text"))
	if err == nil {
		t.Fatal("lost write must be surfaced")
	}
	if f.coord.State("a") != StateStale {
		t.Errorf("state = %v", f.coord.State("a"))
	}
}

func TestProducerRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	attempts := 0
	f.coord.producer = produceFunc(func(ctx context.Context, text string) ([]float32, error) {
		attempts++
		if attempts < 2 {
			return nil, &producer.Error{Err: errors.New("transient")}
		}
		return []float32{1, 0, 0, 0}, nil
	})

	if err := f.coord.SyncDocument(ctx, input("a", "flaky")); err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if f.coord.State("a") != StateUpToDate {
		t.Errorf("state = %v", f.coord.State("a"))
	}
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.producer.FailWith("bad doc", errors.New("boom"))
	inputs := []*models.DocumentInput{
		input("a", "good doc one"),
		input("b", "bad doc"),
		input("c", "good doc two"),
	}
	failed, err := f.coord.SyncAll(ctx, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if f.coord.State("a") != StateUpToDate || f.coord.State("c") != StateUpToDate {
		t.Error("healthy documents affected by a failing one")
	}
	if f.coord.State("b") != StateStale {
		t.Errorf("state b = %v", f.coord.State("b"))
	}
}

func TestRebuildFromWarmCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.SyncAll(ctx, []*models.DocumentInput{
		input("a", "cats"), input("b", "dogs"),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Simulate restart: fresh index, same storage and cache.
	idx2, _ := index.New(testDims)
	coord2 := New(f.storage, f.cache, fingerprint.NewStore(f.cache), idx2, f.producer, Options{})
	if err := coord2.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if idx2.Size() != 2 {
		t.Errorf("rebuilt index size = %d", idx2.Size())
	}
	if coord2.State("a") != StateUpToDate || coord2.State("b") != StateUpToDate {
		t.Error("rebuilt documents not up to date")
	}
}

func TestSyncDocumentInFlightIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if !f.coord.acquire("a") {
		t.Fatal("acquire failed on idle document")
	}
	err := f.coord.SyncDocument(ctx, input("a", "concurrent edit"))
	if !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("err = %v, want ErrSyncInFlight", err)
	}
	if f.producer.Calls() != 0 {
		t.Errorf("producer calls = %d during in-flight skip", f.producer.Calls())
	}

	// Once the in-flight sync releases, the caller's retry goes through.
	f.coord.release("a")
	if err := f.coord.SyncDocument(ctx, input("a", "concurrent edit")); err != nil {
		t.Fatal(err)
	}
	if f.coord.State("a") != StateUpToDate {
		t.Errorf("state = %v", f.coord.State("a"))
	}
}

func TestRemoveDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.coord.SyncDocument(ctx, input("a", "cats"))
	if err := f.coord.RemoveDocument(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if f.index.Contains("a") {
		t.Error("index entry survived removal")
	}
	if n, _ := f.cache.Count(ctx); n != 0 {
		t.Errorf("cache count = %d", n)
	}
	if f.coord.State("a") != StateUnknown {
		t.Errorf("state = %v", f.coord.State("a"))
	}
}

// produceFunc adapts a function to the Producer interface.
type produceFunc func(ctx context.Context, text string) ([]float32, error)

func (f produceFunc) Produce(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

func (f produceFunc) ProduceBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f produceFunc) Dimensions() int { return testDims }
