// Package memory implementa el delivery queue en memoria, para tests y dev.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/dropDatabas3/profilesync/internal/queue"
)

// Queue acumula punteros en orden FIFO.
type Queue struct {
	mu       sync.Mutex
	items    []queue.Pointer
	failNext error
}

func New() *Queue { return &Queue{} }

func (q *Queue) Publish(ctx context.Context, p queue.Pointer) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext != nil {
		err := q.failNext
		q.failNext = nil
		return err
	}
	q.items = append(q.items, p)
	return nil
}

// Drain retorna y vacía los punteros acumulados.
func (q *Queue) Drain() []queue.Pointer {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// FailNext hace que el próximo Publish falle con el error dado (o uno
// genérico si err es nil). Para tests de publish best-effort.
func (q *Queue) FailNext(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err == nil {
		err = errors.New("queue: injected failure")
	}
	q.failNext = err
}

func (q *Queue) Close() error { return nil }
