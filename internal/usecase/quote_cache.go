package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/metrics"
)

const defaultQuoteBatchSize = 50

// QuoteKey identifies an instrument in the quote cache.
type QuoteKey struct {
	Exchange string
	Symbol   string
}

// QuoteCache holds last-traded prices for the current union-of-interest
// symbol set, bulk-refreshed in bounded sequential batches. A single
// timestamp covers the whole cache; staleness is judged against it.
type QuoteCache struct {
	broker    domain.Broker
	resolver  domain.InstrumentResolver
	tokens    domain.TokenSource
	ttl       time.Duration
	batchSize int
	logger    *zap.Logger

	prices    map[QuoteKey]float64
	fetchedAt time.Time
}

func NewQuoteCache(
	broker domain.Broker,
	resolver domain.InstrumentResolver,
	tokens domain.TokenSource,
	ttl time.Duration,
	batchSize int,
	logger *zap.Logger,
) *QuoteCache {
	if batchSize <= 0 {
		batchSize = defaultQuoteBatchSize
	}
	return &QuoteCache{
		broker:    broker,
		resolver:  resolver,
		tokens:    tokens,
		ttl:       ttl,
		batchSize: batchSize,
		logger:    logger,
		prices:    make(map[QuoteKey]float64),
	}
}

// Refresh rebuilds the cache for the union of holding symbols, active BUY
// conditional-order symbols and entry-level symbols. Unresolvable symbols
// and failed batches are logged and skipped, never fatal; on an authorization
// failure each batch gets exactly one token-refresh-and-retry.
func (q *QuoteCache) Refresh(
	ctx context.Context,
	holdings []domain.Holding,
	orders []domain.ConditionalOrder,
	rows []domain.EntryLevelRow,
) error {
	universe := collectSymbols(holdings, orders, rows)

	keys := make([]string, 0, len(universe))
	reverse := make(map[string]QuoteKey, len(universe))
	for _, qk := range universe {
		key, err := q.resolver.Resolve(qk.Exchange, qk.Symbol)
		if err != nil {
			q.logger.Warn("instrument key not resolvable, omitting symbol",
				zap.String("symbol", qk.Symbol),
				zap.String("exchange", qk.Exchange),
				zap.Error(err))
			continue
		}
		keys = append(keys, key)
		reverse[key] = qk
	}

	prices := make(map[QuoteKey]float64, len(keys))
	for start := 0; start < len(keys); start += q.batchSize {
		end := start + q.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		quotes, err := q.fetchBatch(ctx, batch)
		if err != nil {
			q.logger.Error("quote batch failed, skipping",
				zap.Int("batch_size", len(batch)), zap.Error(err))
			metrics.IncQuoteBatch("error")
			continue
		}
		metrics.IncQuoteBatch("ok")
		for key, price := range quotes {
			if qk, ok := reverse[key]; ok {
				prices[qk] = price
			}
		}
	}

	q.prices = prices
	q.fetchedAt = time.Now()
	q.logger.Debug("quote cache refreshed",
		zap.Int("symbols", len(q.prices)), zap.Int("requested", len(keys)))
	return nil
}

func (q *QuoteCache) fetchBatch(ctx context.Context, batch []string) (map[string]float64, error) {
	quotes, err := q.broker.GetQuotes(ctx, batch)
	if err == nil || !errors.Is(err, domain.ErrUnauthorized) || q.tokens == nil {
		return quotes, err
	}
	q.logger.Info("quote fetch unauthorized, refreshing token once")
	if rerr := q.tokens.Refresh(ctx); rerr != nil {
		return nil, rerr
	}
	return q.broker.GetQuotes(ctx, batch)
}

// IsStale reports whether the last refresh is older than the TTL.
func (q *QuoteCache) IsStale() bool {
	return time.Since(q.fetchedAt) > q.ttl
}

// Price returns the cached last-traded price. Fails with ErrStaleQuoteCache
// past the TTL and ErrQuoteNotFound for symbols that were never resolved or
// fetched. The session's access path refreshes before reading, so a stale
// error here indicates a caller bug.
func (q *QuoteCache) Price(exchange, symbol string) (float64, error) {
	if q.IsStale() {
		return 0, domain.ErrStaleQuoteCache
	}
	price, ok := q.prices[QuoteKey{Exchange: exchange, Symbol: domain.NormalizeSymbol(symbol)}]
	if !ok {
		return 0, domain.ErrQuoteNotFound
	}
	return price, nil
}

// Len is the number of cached quotes.
func (q *QuoteCache) Len() int { return len(q.prices) }

// FetchedAt is the single refresh timestamp covering the whole cache.
func (q *QuoteCache) FetchedAt() time.Time { return q.fetchedAt }

func collectSymbols(
	holdings []domain.Holding,
	orders []domain.ConditionalOrder,
	rows []domain.EntryLevelRow,
) []QuoteKey {
	set := make(map[QuoteKey]struct{})
	for _, h := range holdings {
		set[QuoteKey{Exchange: h.Exchange, Symbol: domain.NormalizeSymbol(h.Symbol)}] = struct{}{}
	}
	for _, o := range orders {
		if o.IsActiveBuy() {
			set[QuoteKey{Exchange: o.Exchange, Symbol: domain.NormalizeSymbol(o.Symbol)}] = struct{}{}
		}
	}
	for _, r := range rows {
		if r.Symbol == "" {
			continue
		}
		// Entry rows may leave the exchange blank; planners assume NSE too.
		exchange := r.Exchange
		if exchange == "" {
			exchange = "NSE"
		}
		set[QuoteKey{Exchange: exchange, Symbol: domain.NormalizeSymbol(r.Symbol)}] = struct{}{}
	}

	universe := make([]QuoteKey, 0, len(set))
	for qk := range set {
		universe = append(universe, qk)
	}
	// Deterministic batch composition.
	sort.Slice(universe, func(i, j int) bool {
		if universe[i].Exchange != universe[j].Exchange {
			return universe[i].Exchange < universe[j].Exchange
		}
		return universe[i].Symbol < universe[j].Symbol
	})
	return universe
}
