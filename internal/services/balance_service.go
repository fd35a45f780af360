package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/klture/creditwallet/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceService derives an account balance from its ledger entries. The Redis
// copy is a read-through cache only; a nil client disables it.
type BalanceService struct {
	store  repository.Store
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewBalanceService(store repository.Store, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *BalanceService {
	return &BalanceService{
		store:  store,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

func balanceKey(accountID string) string {
	return "wallet:balance:" + accountID
}

// generationKey counts invalidations of an account's cached balance.
func generationKey(accountID string) string {
	return "wallet:balance:gen:" + accountID
}

// fillScript stores a computed balance only if no invalidation happened since
// the generation in ARGV[2] was read.
const fillScript = `
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1`

func (s *BalanceService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if accountID == "" {
		return decimal.Zero, invalid("account_id", "must not be empty")
	}

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, balanceKey(accountID)).Result()
		switch {
		case err == nil:
			if balance, perr := decimal.NewFromString(cached); perr == nil {
				return balance, nil
			}
			s.logger.Warn("discarding malformed cached balance",
				zap.String("account_id", accountID), zap.String("value", cached))
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("balance cache read failed", zap.String("account_id", accountID), zap.Error(err))
		}
	}

	gen, cacheable := s.generation(ctx, accountID)

	balance, err := s.Recompute(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	if cacheable {
		s.fill(ctx, accountID, gen, balance)
	}

	return balance, nil
}

// generation reads the invalidation counter before the ledger is summed.
// The result is false when the cache is off or the counter is unreadable.
func (s *BalanceService) generation(ctx context.Context, accountID string) (string, bool) {
	if s.redis == nil || s.ttl <= 0 {
		return "", false
	}
	gen, err := s.redis.Get(ctx, generationKey(accountID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		s.logger.Warn("balance cache generation read failed", zap.String("account_id", accountID), zap.Error(err))
		return "", false
	}
	return gen, true
}

func (s *BalanceService) fill(ctx context.Context, accountID, gen string, balance decimal.Decimal) {
	keys := []string{balanceKey(accountID), generationKey(accountID)}
	stored, err := s.redis.Eval(ctx, fillScript, keys,
		balance.StringFixed(2), gen, strconv.FormatInt(s.ttl.Milliseconds(), 10)).Int()
	if err != nil {
		s.logger.Warn("balance cache write failed", zap.String("account_id", accountID), zap.Error(err))
		return
	}
	if stored == 0 {
		s.logger.Debug("balance changed while computing, not cached", zap.String("account_id", accountID))
	}
}

// Recompute sums the ledger, bypassing the cache.
func (s *BalanceService) Recompute(ctx context.Context, accountID string) (decimal.Decimal, error) {
	balance, err := s.store.SumBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Invalidate drops the cached balance after an append. Bumping the generation
// first stops any fill computed before the append from landing afterwards.
func (s *BalanceService) Invalidate(ctx context.Context, accountID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Incr(ctx, generationKey(accountID)).Err(); err != nil {
		s.logger.Warn("balance cache generation bump failed", zap.String("account_id", accountID), zap.Error(err))
	}
	if err := s.redis.Del(ctx, balanceKey(accountID)).Err(); err != nil {
		s.logger.Warn("balance cache invalidate failed", zap.String("account_id", accountID), zap.Error(err))
	}
}
