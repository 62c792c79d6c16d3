package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"coinbase_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Snapshots живой срез состояния символов с TTL: ключ <prefix>:latest:<SYMBOL>,
// множество <prefix>:symbols хранит известные символы.
type Snapshots struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewSnapshots(client redis.UniversalClient, prefix string, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Snapshots{client: client, prefix: prefix, ttl: ttl}
}

func (s *Snapshots) latestKey(symbol string) string {
	return fmt.Sprintf("%s:latest:%s", s.prefix, symbol)
}

func (s *Snapshots) symbolsKey() string {
	return s.prefix + ":symbols"
}

func (s *Snapshots) Publish(ctx context.Context, snap models.StateSnapshot) error {
	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("Snapshots.Publish: marshal: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.latestKey(snap.Symbol), data, s.ttl)
	pipe.SAdd(ctx, s.symbolsKey(), snap.Symbol)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("Snapshots.Publish: %w", err)
	}
	return nil
}

// Get nil без ошибки, если срез истёк или не публиковался.
func (s *Snapshots) Get(ctx context.Context, symbol string) (*models.StateSnapshot, error) {
	data, err := s.client.Get(ctx, s.latestKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Snapshots.Get: %w", err)
	}

	var snap models.StateSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Snapshots.Get: unmarshal: %w", err)
	}
	return &snap, nil
}

// All живые срезы всех известных символов по алфавиту.
func (s *Snapshots) All(ctx context.Context) ([]models.StateSnapshot, error) {
	symbols, err := s.client.SMembers(ctx, s.symbolsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("Snapshots.All: %w", err)
	}
	if len(symbols) == 0 {
		return nil, nil
	}
	sort.Strings(symbols)

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = s.latestKey(sym)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("Snapshots.All: %w", err)
	}

	out := make([]models.StateSnapshot, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // истёк
		}
		var snap models.StateSnapshot
		if err := sonic.UnmarshalString(raw, &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
