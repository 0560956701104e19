package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echograph/internal/providers"
)

type countingProvider struct {
	calls  atomic.Int32
	inputs atomic.Int32
	block  chan struct{}
	err    error
}

func (p *countingProvider) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	p.calls.Add(1)
	p.inputs.Add(int32(len(req.Inputs)))
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, providers.ProviderInfo{Name: "counting"}, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, providers.ProviderInfo{Name: "counting"}, p.err
	}
	out := make([][]float32, len(req.Inputs))
	for i, in := range req.Inputs {
		out[i] = []float32{float32(len(in)), 1}
	}
	return out, providers.ProviderInfo{Name: "counting"}, nil
}

func TestEmbedPreservesOrder(t *testing.T) {
	svc, err := FromProvider(&countingProvider{}, Options{}, zerolog.Nop())
	require.NoError(t, err)

	got, err := svc.Embed(context.Background(), []string{"a", "abc", "ab"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {3, 1}, {2, 1}}, got)

	empty, err := svc.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProviderBuiltOnce(t *testing.T) {
	var builds atomic.Int32
	svc, err := NewService(func() (providers.EmbeddingProvider, error) {
		builds.Add(1)
		return &countingProvider{}, nil
	}, Options{Workers: 4}, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Embed(context.Background(), []string{"x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), builds.Load())
}

func TestProviderInitErrorIsSticky(t *testing.T) {
	initErr := errors.New("no model")
	svc, err := NewService(func() (providers.EmbeddingProvider, error) { return nil, initErr }, Options{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, initErr)
	_, err = svc.Embed(context.Background(), []string{"y"})
	require.ErrorIs(t, err, initErr)
}

func TestEmbedReturnsOnCancellation(t *testing.T) {
	p := &countingProvider{block: make(chan struct{})}
	defer close(p.block)
	svc, err := FromProvider(p, Options{Workers: 1}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Embed(ctx, []string{"slow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbedPropagatesProviderError(t *testing.T) {
	svc, err := FromProvider(&countingProvider{err: errors.New("429 rate limited")}, Options{}, zerolog.Nop())
	require.NoError(t, err)
	_, err = svc.Embed(context.Background(), []string{"x"})
	require.ErrorContains(t, err, "429 rate limited")
}

func TestEmbedCacheSkipsKnownTexts(t *testing.T) {
	p := &countingProvider{}
	svc, err := FromProvider(p, Options{CacheSize: 8}, zerolog.Nop())
	require.NoError(t, err)

	first, err := svc.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	second, err := svc.Embed(context.Background(), []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, int32(3), p.inputs.Load())

	_, err = svc.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestEmbedPair(t *testing.T) {
	svc, err := FromProvider(providers.NewMockProvider(32), Options{}, zerolog.Nop())
	require.NoError(t, err)

	left, right, err := svc.EmbedPair(context.Background(), []string{"guideline"}, []string{"regulation one", "regulation two"})
	require.NoError(t, err)
	assert.Len(t, left, 1)
	assert.Len(t, right, 2)
	assert.Len(t, right[1], 32)
}

func TestNewServiceRequiresFactory(t *testing.T) {
	_, err := NewService(nil, Options{}, zerolog.Nop())
	require.Error(t, err)
}

func TestManagerFactory(t *testing.T) {
	p, err := ManagerFactory("mock", 16)()
	require.NoError(t, err)
	vecs, info, err := p.Embed(context.Background(), providers.EmbedRequest{Inputs: []string{"encrypt data"}})
	require.NoError(t, err)
	assert.Equal(t, "mock", info.Name)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 16)

	_, err = ManagerFactory("carrier-pigeon", 16)()
	require.Error(t, err)
}
