package credit

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "leadfinder:credits:"

// RedisStore keeps balances as Redis integers. Deductions run as a Lua
// script so the check and the decrement happen in one step.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis wraps client.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func key(userID string) string { return redisKeyPrefix + userID }

func (s *RedisStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.client.Ping(ctx).Err(), "redis: ping")
}

func (s *RedisStore) Get(ctx context.Context, userID string) (int, bool, error) {
	bal, err := s.client.Get(ctx, key(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "redis: get balance %s", userID)
	}
	return bal, true, nil
}

func (s *RedisStore) Set(ctx context.Context, userID string, balance int) error {
	return eris.Wrapf(s.client.Set(ctx, key(userID), balance, 0).Err(), "redis: set balance %s", userID)
}

// Ensure implements AtomicStore.
func (s *RedisStore) Ensure(ctx context.Context, userID string, grant int) (int, error) {
	if err := s.client.SetNX(ctx, key(userID), grant, 0).Err(); err != nil {
		return 0, eris.Wrapf(err, "redis: ensure account %s", userID)
	}
	bal, _, err := s.Get(ctx, userID)
	return bal, err
}

// Deduct implements AtomicStore.
func (s *RedisStore) Deduct(ctx context.Context, userID string, amount, grant int) (int, bool, error) {
	res, err := deductScript.Run(ctx, s.client, []string{key(userID)}, amount, grant).Int64Slice()
	if err != nil {
		return 0, false, eris.Wrapf(err, "redis: deduct %s", userID)
	}
	if len(res) < 2 {
		return 0, false, eris.Errorf("redis: deduct %s: unexpected reply %v", userID, res)
	}
	return int(res[1]), res[0] == 1, nil
}

// Add implements AtomicStore.
func (s *RedisStore) Add(ctx context.Context, userID string, amount, grant int) (int, error) {
	bal, err := addScript.Run(ctx, s.client, []string{key(userID)}, amount, grant).Int()
	if err != nil {
		return 0, eris.Wrapf(err, "redis: add %s", userID)
	}
	return bal, nil
}

var deductScript = redis.NewScript(`
local amount = tonumber(ARGV[1])
local grant = tonumber(ARGV[2])

redis.call('SETNX', KEYS[1], grant)
local balance = tonumber(redis.call('GET', KEYS[1]))
if balance < amount then
  return {0, balance}
end
balance = redis.call('DECRBY', KEYS[1], amount)
return {1, balance}
`)

var addScript = redis.NewScript(`
redis.call('SETNX', KEYS[1], tonumber(ARGV[2]))
return redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))
`)
