package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// applyScript adjusts a balance and appends the movement to the owner's
// stream in one atomic step. It returns {ok, balance}; ok is 0 when the
// balance would go negative.
var applyScript = redis.NewScript(`
local bal = redis.call('GET', KEYS[1])
if bal then bal = tonumber(bal) else bal = tonumber(ARGV[2]) end
local delta = tonumber(ARGV[1])
if bal + delta < 0 then
  return {0, bal}
end
bal = bal + delta
redis.call('SET', KEYS[1], bal)
redis.call('XADD', KEYS[2], 'MAXLEN', '~', ARGV[6], '*',
  'id', ARGV[3], 'kind', ARGV[4], 'delta', delta, 'balance', bal, 'at', ARGV[5])
return {1, bal}
`)

// RedisLedger keeps balances as plain integer keys, with a capped stream of
// entries per owner.
type RedisLedger struct {
	client     *redis.Client
	opening    int64
	prefix     string
	maxEntries int64
}

type RedisOption func(*RedisLedger)

func WithKeyPrefix(p string) RedisOption { return func(l *RedisLedger) { l.prefix = p } }

func NewRedis(client *redis.Client, opening int64, opts ...RedisOption) *RedisLedger {
	l := &RedisLedger{client: client, opening: opening, prefix: "ledger", maxEntries: 1000}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (l *RedisLedger) balanceKey(owner string) string {
	return fmt.Sprintf("%s:balance:%s", l.prefix, owner)
}

func (l *RedisLedger) entriesKey(owner string) string {
	return fmt.Sprintf("%s:entries:%s", l.prefix, owner)
}

func (l *RedisLedger) Balance(ctx context.Context, owner string) (int64, error) {
	bal, err := l.client.Get(ctx, l.balanceKey(owner)).Int64()
	if errors.Is(err, redis.Nil) {
		return l.opening, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return bal, nil
}

func (l *RedisLedger) Credit(ctx context.Context, owner, kind string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, owner, kind, amount)
}

func (l *RedisLedger) Debit(ctx context.Context, owner, kind string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, owner, kind, -amount)
}

func (l *RedisLedger) apply(ctx context.Context, owner, kind string, delta int64) (int64, error) {
	res, err := applyScript.Run(ctx, l.client,
		[]string{l.balanceKey(owner), l.entriesKey(owner)},
		delta, l.opening, uuid.NewString(), kind, time.Now().UTC().Format(time.RFC3339Nano), l.maxEntries,
	).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("apply %d to %s: %w", delta, owner, err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("apply %d to %s: unexpected reply %v", delta, owner, res)
	}
	if res[0] == 0 {
		return res[1], ErrInsufficient
	}
	return res[1], nil
}

// History returns up to limit entries of owner, newest first.
func (l *RedisLedger) History(ctx context.Context, owner string, limit int) ([]Entry, error) {
	msgs, err := l.client.XRevRangeN(ctx, l.entriesKey(owner), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		e := Entry{Owner: owner}
		e.ID, _ = m.Values["id"].(string)
		e.Kind, _ = m.Values["kind"].(string)
		if s, ok := m.Values["delta"].(string); ok {
			e.Delta, _ = strconv.ParseInt(s, 10, 64)
		}
		if s, ok := m.Values["balance"].(string); ok {
			e.Balance, _ = strconv.ParseInt(s, 10, 64)
		}
		if s, ok := m.Values["at"].(string); ok {
			e.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
		}
		out = append(out, e)
	}
	return out, nil
}
