// Package lock — блокировки уровня запуска (одно начисление за раз на всю
// платформу). Redis, если он настроен, иначе advisory lock в PostgreSQL.
package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"wealthfund.in/platform/internal/config"
	"wealthfund.in/platform/internal/db/postgres"
)

// Locker берёт неблокирующую блокировку по ключу.
// ok = false — блокировку держит кто-то другой.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Redis — блокировка через SET NX PX. Снимается только владельцем токена.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Удаляем ключ, только если значение всё ещё наше
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		if err := unlockScript.Run(context.Background(), r.rdb, []string{"lock:" + key}, token).Err(); err != nil {
			log.WithError(err).WithField("key", key).Warn("Не удалось снять блокировку в Redis")
		}
	}
	return release, true, nil
}

// Postgres — сессионный advisory lock. ttl не используется: блокировка
// живёт, пока открыто соединение.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) TryLock(ctx context.Context, key string, _ time.Duration) (func(), bool, error) {
	return postgres.AdvisoryLock(ctx, p.pool, keyHash(key))
}

func keyHash(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// ConnectRedis подключается к Redis. Пустой REDIS_ADDR — Redis не используется.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis недоступен: %w", err)
	}
	log.Info("Подключение к Redis установлено")
	return rdb, nil
}
