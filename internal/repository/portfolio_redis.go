package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"TradeFlow/internal/domain/models"
	domrepo "TradeFlow/internal/domain/repository"
	"TradeFlow/pkg/cache"
)

const maxApplyAttempts = 8

// RedisPortfolioStore keeps the portfolio in Redis. Apply is an optimistic
// WATCH/MULTI transaction over the risk, summary and positions keys.
type RedisPortfolioStore struct {
	client *redis.Client

	riskKey, summaryKey, positionsKey string
	execKey, execIndexKey             string
}

func NewRedisPortfolioStore(client *redis.Client, prefix string) *RedisPortfolioStore {
	key := func(parts ...string) string {
		if prefix == "" {
			return cache.Key(parts...)
		}
		return cache.Key(append([]string{prefix}, parts...)...)
	}
	return &RedisPortfolioStore{
		client:       client,
		riskKey:      key("portfolio", "risk"),
		summaryKey:   key("portfolio", "summary"),
		positionsKey: key("portfolio", "positions"),
		execKey:      key("portfolio", "executions"),
		execIndexKey: key("portfolio", "executions", "by_time"),
	}
}

var _ domrepo.PortfolioStore = (*RedisPortfolioStore)(nil)

func (s *RedisPortfolioStore) InitRiskConfig(ctx context.Context, cfg models.RiskConfiguration) error {
	return s.createOnce(ctx, s.riskKey, cfg)
}

func (s *RedisPortfolioStore) CreateSummary(ctx context.Context, sum models.PortfolioSummary) error {
	return s.createOnce(ctx, s.summaryKey, sum)
}

func (s *RedisPortfolioStore) createOnce(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	ok, err := s.client.SetNX(ctx, key, b, 0).Result()
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if !ok {
		return domrepo.ErrSingletonExists
	}
	return nil
}

func (s *RedisPortfolioStore) Load(ctx context.Context) (*models.PortfolioState, error) {
	return s.read(ctx, s.client)
}

// Apply retries when another writer touched the watched keys between read and EXEC.
func (s *RedisPortfolioStore) Apply(ctx context.Context, fn func(*models.PortfolioState) error) error {
	txf := func(tx *redis.Tx) error {
		st, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		risk, err := json.Marshal(st.Risk)
		if err != nil {
			return fmt.Errorf("encode risk: %w", err)
		}
		summary, err := json.Marshal(st.Summary)
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		positions, err := encodePositions(st.Positions)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.riskKey, risk, 0)
			pipe.Set(ctx, s.summaryKey, summary, 0)
			pipe.Del(ctx, s.positionsKey)
			if len(positions) > 0 {
				pipe.HSet(ctx, s.positionsKey, positions)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxApplyAttempts; i++ {
		err := s.client.Watch(ctx, txf, s.riskKey, s.summaryKey, s.positionsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("portfolio apply: %w", redis.TxFailedErr)
}

type redisReader interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *RedisPortfolioStore) read(ctx context.Context, r redisReader) (*models.PortfolioState, error) {
	vals, err := r.MGet(ctx, s.riskKey, s.summaryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	positions, err := r.HGetAll(ctx, s.positionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	risk, _ := vals[0].(string)
	summary, _ := vals[1].(string)
	return decodeState(risk, summary, positions)
}

func decodeState(risk, summary string, positions map[string]string) (*models.PortfolioState, error) {
	if risk == "" || summary == "" {
		return nil, domrepo.ErrNotInitialized
	}
	st := &models.PortfolioState{Positions: make(map[string]models.PortfolioPosition, len(positions))}
	if err := json.Unmarshal([]byte(risk), &st.Risk); err != nil {
		return nil, fmt.Errorf("decode risk: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &st.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	for sym, raw := range positions {
		var p models.PortfolioPosition
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode position %s: %w", sym, err)
		}
		st.Positions[sym] = p
	}
	return st, nil
}

func encodePositions(positions map[string]models.PortfolioPosition) (map[string]any, error) {
	out := make(map[string]any, len(positions))
	for sym, p := range positions {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode position %s: %w", sym, err)
		}
		out[sym] = string(b)
	}
	return out, nil
}

// AppendExecution writes with HSETNX, so an existing id is never overwritten.
func (s *RedisPortfolioStore) AppendExecution(ctx context.Context, e models.TradeExecution) error {
	if e.ID == "" {
		return fmt.Errorf("execution id is required")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode execution: %w", err)
	}
	ok, err := s.client.HSetNX(ctx, s.execKey, e.ID, b).Result()
	if err != nil {
		return fmt.Errorf("append execution: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: execution %s", domrepo.ErrImmutableRecord, e.ID)
	}
	score := float64(e.ExecutedAt.UnixNano())
	if err := s.client.ZAdd(ctx, s.execIndexKey, redis.Z{Score: score, Member: e.ID}).Err(); err != nil {
		return fmt.Errorf("index execution: %w", err)
	}
	return nil
}

func (s *RedisPortfolioStore) Executions(ctx context.Context, limit int) ([]models.TradeExecution, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.execIndexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	if len(ids) == 0 {
		return []models.TradeExecution{}, nil
	}
	raws, err := s.client.HMGet(ctx, s.execKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load executions: %w", err)
	}
	out := make([]models.TradeExecution, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var e models.TradeExecution
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("decode execution: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
