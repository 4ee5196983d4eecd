package producer

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// MockProducer is a deterministic producer: the vector is derived from an
// FNV hash of the text, so the same text always gets the same vector. Used
// when no endpoint is configured and throughout tests. Stubbed vectors and
// scripted failures support the coordinator and search tests.
type MockProducer struct {
	dimensions int

	mu       sync.Mutex
	stubs    map[string][]float32
	failures map[string]error
	calls    int
}

// NewMockProducer returns a producer of deterministic unit-length vectors.
func NewMockProducer(dimensions int) *MockProducer {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockProducer{
		dimensions: dimensions,
		stubs:      make(map[string][]float32),
		failures:   make(map[string]error),
	}
}

// Stub fixes the vector returned for text, bypassing derivation.
func (p *MockProducer) Stub(text string, vector []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stubs[text] = vector
}

// FailWith makes every Produce call for text return err.
func (p *MockProducer) FailWith(text string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[text] = err
}

// Calls returns how many texts have been produced so far.
func (p *MockProducer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Produce returns the vector for text.
func (p *MockProducer) Produce(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Err: err}
	}
	p.mu.Lock()
	p.calls++
	if err, ok := p.failures[text]; ok {
		p.mu.Unlock()
		return nil, &Error{Err: err}
	}
	if vec, ok := p.stubs[text]; ok {
		p.mu.Unlock()
		return append([]float32(nil), vec...), nil
	}
	p.mu.Unlock()
	return p.derive(text), nil
}

// ProduceBatch calls Produce for each text.
func (p *MockProducer) ProduceBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Produce(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the vector dimension.
func (p *MockProducer) Dimensions() int {
	return p.dimensions
}

func (p *MockProducer) derive(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(seed%10007)*float64(i+1))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := 1.0 / math.Sqrt(sum)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec
}
