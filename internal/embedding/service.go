// Package embedding serves batch embedding calls from one lazily built provider.
package embedding

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"echograph/internal/providers"
	"echograph/internal/util"
)

const defaultWorkers = 2

// ProviderFactory builds the provider on first use.
type ProviderFactory func() (providers.EmbeddingProvider, error)

type Options struct {
	Workers   int
	CacheSize int
	Dimension int
	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64
}

// Service embeds text batches. The provider is constructed exactly once and
// shared by every caller; computation runs on a bounded number of worker slots.
type Service struct {
	factory  ProviderFactory
	once     sync.Once
	provider providers.EmbeddingProvider
	initErr  error

	slots   chan struct{}
	dim     int
	cache   *lru.Cache[string, []float32]
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewService(factory ProviderFactory, opts Options, log zerolog.Logger) (*Service, error) {
	if factory == nil {
		return nil, fmt.Errorf("embedding provider factory: %w", util.ErrInvalidArgument)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	s := &Service{
		factory: factory,
		slots:   make(chan struct{}, workers),
		dim:     opts.Dimension,
		log:     log.With().Str("component", "embedding").Logger(),
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []float32](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("build embedding cache: %w", err)
		}
		s.cache = cache
	}
	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return s, nil
}

// ManagerFactory builds the configured providers on first use and serves the
// preferred one, so real providers win over the mock.
func ManagerFactory(providerList string, dim int) ProviderFactory {
	return func() (providers.EmbeddingProvider, error) {
		pm, err := providers.NewManager(providerList, dim)
		if err != nil {
			return nil, err
		}
		p, _ := pm.EmbedProviderByIndex(pm.PreferredEmbedOrder()[0])
		return p, nil
	}
}

// FromProvider wraps an already constructed provider.
func FromProvider(p providers.EmbeddingProvider, opts Options, log zerolog.Logger) (*Service, error) {
	return NewService(func() (providers.EmbeddingProvider, error) { return p, nil }, opts, log)
}

func (s *Service) Provider() (providers.EmbeddingProvider, error) {
	s.once.Do(func() {
		s.provider, s.initErr = s.factory()
		if s.initErr == nil && s.provider == nil {
			s.initErr = fmt.Errorf("embedding provider factory returned nil")
		}
		if s.initErr != nil {
			s.log.Error().Err(s.initErr).Msg("embedding provider init failed")
		}
	})
	return s.provider, s.initErr
}

type embedResult struct {
	vectors [][]float32
	err     error
}

// Embed returns one vector per text in input order. It returns ctx.Err() as
// soon as ctx is done, even while a worker is still computing.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	provider, err := s.Provider()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))
	for i, t := range texts {
		if v, ok := s.cached(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	inputs := make([]string, len(missing))
	for j, i := range missing {
		inputs[j] = texts[i]
	}

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	done := make(chan embedResult, 1)
	go func() {
		defer func() { <-s.slots }()
		done <- s.compute(ctx, provider, inputs)
	}()

	var res embedResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}
	if len(res.vectors) != len(inputs) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(res.vectors), len(inputs))
	}
	for j, i := range missing {
		out[i] = res.vectors[j]
		s.store(texts[i], res.vectors[j])
	}
	return out, nil
}

// EmbedPair embeds both batches concurrently.
func (s *Service) EmbedPair(ctx context.Context, left, right []string) ([][]float32, [][]float32, error) {
	var l, r [][]float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		l, err = s.Embed(gctx, left)
		return err
	})
	g.Go(func() error {
		var err error
		r, err = s.Embed(gctx, right)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func (s *Service) compute(ctx context.Context, provider providers.EmbeddingProvider, inputs []string) embedResult {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return embedResult{err: err}
		}
	}
	vecs, info, err := provider.Embed(ctx, providers.EmbedRequest{Operation: "embed", Inputs: inputs, Dimension: s.dim})
	if err != nil {
		s.log.Warn().Err(err).Str("provider", info.Name).Str("model", info.Model).Int("inputs", len(inputs)).Msg("embed batch failed")
		return embedResult{err: fmt.Errorf("embed %d texts with %s: %w", len(inputs), info.Name, err)}
	}
	s.log.Debug().Str("provider", info.Name).Str("model", info.Model).Int("inputs", len(inputs)).Msg("embedded batch")
	return embedResult{vectors: vecs}
}

func (s *Service) cached(text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(s.cacheKey(text))
}

func (s *Service) store(text string, v []float32) {
	if s.cache == nil {
		return
	}
	s.cache.Add(s.cacheKey(text), v)
}

func (s *Service) cacheKey(text string) string {
	return util.ContentKey(strconv.Itoa(s.dim), text)
}
