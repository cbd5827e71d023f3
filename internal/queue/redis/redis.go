// Package redis implementa el delivery queue sobre una lista de Redis.
package redis

import (
	"context"
	"encoding/json"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/profilesync/internal/queue"
)

// Queue publica punteros con LPUSH; el worker externo consume con BRPOP.
type Queue struct {
	c   *rdb.Client
	key string
}

// New crea un queue contra addr/db, usando key como lista.
func New(addr string, db int, key string) *Queue {
	return &Queue{
		c:   rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		key: key,
	}
}

func (q *Queue) Publish(ctx context.Context, p queue.Pointer) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return q.c.LPush(ctx, q.key, b).Err()
}

// Pop bloquea hasta timeout esperando un puntero. Lo usa el worker externo
// y los tests de integración; el pipeline nunca lee del queue.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*queue.Pointer, error) {
	res, err := q.c.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		return nil, err
	}
	// BRPop retorna [key, value]
	var p queue.Pointer
	if err := json.Unmarshal([]byte(res[1]), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *Queue) Close() error { return q.c.Close() }
