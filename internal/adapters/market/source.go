package market

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/selivandex/stock-qa-bot/internal/financial"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

// Fetcher is the HTTP surface scrapers need
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Source reports metric observations for one ticker
type Source interface {
	Name() string
	Priority() int
	Observe(ctx context.Context, ticker string) (map[financial.Metric]financial.Observation, error)
}

// Service resolves a company to its ticker and queries all sources concurrently
type Service struct {
	resolver Resolver
	sources  []Source
}

// NewService creates market metrics service
func NewService(resolver Resolver, sources ...Source) *Service {
	return &Service{resolver: resolver, sources: sources}
}

// FetchCandidates returns one candidate per source. A failing source yields a
// candidate with Err set; only ticker resolution failure is returned as error.
func (s *Service) FetchCandidates(ctx context.Context, company string) (string, []financial.Candidate, error) {
	ticker, err := s.resolver.Resolve(ctx, company)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve ticker for %s: %w", company, err)
	}

	candidates := make([]financial.Candidate, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		g.Go(func() error {
			start := time.Now()
			obs, err := src.Observe(gctx, ticker)
			candidates[i] = financial.Candidate{
				Source:       src.Name(),
				Priority:     src.Priority(),
				Observations: obs,
				Err:          err,
			}
			if err != nil {
				logger.Warn("market source failed",
					zap.String("source", src.Name()),
					zap.String("ticker", ticker),
					zap.Error(err),
				)
				return nil
			}
			logger.Debug("market source observed",
				zap.String("source", src.Name()),
				zap.String("ticker", ticker),
				zap.Int("metrics", countAvailable(obs)),
				zap.Duration("took", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()

	return ticker, candidates, nil
}

func countAvailable(obs map[financial.Metric]financial.Observation) int {
	n := 0
	for _, o := range obs {
		if o.Status == financial.StatusAvailable {
			n++
		}
	}
	return n
}
