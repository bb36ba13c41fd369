package external

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gokatarajesh/brainbolt/internal/question"
)

// Upserter persists questions, skipping ids it already holds.
type Upserter interface {
	Upsert(ctx context.Context, questions []question.Question) (int, error)
}

// PoolInvalidator drops cached per-difficulty question pools.
type PoolInvalidator interface {
	Invalidate(ctx context.Context, minDifficulty, maxDifficulty int) error
}

// DefaultRequestInterval matches the Open Trivia DB limit of one call per
// five seconds per client.
const DefaultRequestInterval = 5 * time.Second

// Importer pulls every level from each source and stores the union.
type Importer struct {
	sources  []Source
	sink     Upserter
	interval time.Duration
	cache    PoolInvalidator
	logger   zerolog.Logger
}

func NewImporter(sink Upserter, logger zerolog.Logger, sources ...Source) *Importer {
	return &Importer{
		sources:  sources,
		sink:     sink,
		interval: DefaultRequestInterval,
		logger:   logger.With().Str("component", "question_importer").Logger(),
	}
}

// WithRequestInterval sets the minimum spacing between calls to one source.
// Zero disables throttling.
func (i *Importer) WithRequestInterval(d time.Duration) *Importer {
	i.interval = d
	return i
}

// WithPoolInvalidator flushes the cached pools of every imported difficulty
// once new questions are stored, so running servers pick them up.
func (i *Importer) WithPoolInvalidator(cache PoolInvalidator) *Importer {
	i.cache = cache
	return i
}

func (i *Importer) limiter() *rate.Limiter {
	if i.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(i.interval), 1)
}

// Run fetches amount questions per level per source. A failing source is
// logged and skipped; Run errors only when nothing could be fetched.
func (i *Importer) Run(ctx context.Context, amount int) (int, error) {
	levels := make([]string, 0, len(Levels))
	for l := range Levels {
		levels = append(levels, l)
	}
	sort.Strings(levels)

	var (
		mu      sync.Mutex
		fetched = make(map[string]question.Question)
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, src := range i.sources {
		// Each source gets its own budget; levels of one source share it.
		lim := i.limiter()
		for _, level := range levels {
			g.Go(func() error {
				if err := lim.Wait(gctx); err != nil {
					return err
				}
				qs, err := src.Fetch(gctx, amount, level)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					i.logger.Warn().Err(err).Str("source", src.Name()).Str("level", level).Msg("fetch failed")
					return nil
				}
				for _, q := range qs {
					fetched[q.ID] = q
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	if len(fetched) == 0 {
		if failed > 0 {
			return 0, fmt.Errorf("import: all %d fetches failed", failed)
		}
		return 0, nil
	}

	batch := make([]question.Question, 0, len(fetched))
	for _, q := range fetched {
		batch = append(batch, q)
	}
	sort.Slice(batch, func(a, b int) bool { return batch[a].ID < batch[b].ID })

	inserted, err := i.sink.Upsert(ctx, batch)
	if err != nil {
		return inserted, fmt.Errorf("import: %w", err)
	}
	i.logger.Info().Int("fetched", len(batch)).Int("inserted", inserted).Msg("questions imported")

	if i.cache != nil && inserted > 0 {
		lo, hi := batch[0].Difficulty, batch[0].Difficulty
		for _, q := range batch[1:] {
			lo, hi = min(lo, q.Difficulty), max(hi, q.Difficulty)
		}
		if err := i.cache.Invalidate(ctx, lo, hi); err != nil {
			// Stale pools expire on their own TTL.
			i.logger.Warn().Err(err).Msg("failed to invalidate cached question pools")
		}
	}
	return inserted, nil
}
