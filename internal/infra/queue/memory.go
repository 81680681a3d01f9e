package queue

import (
	"context"
	"sync"

	"tg-release-bot/internal/domain"
)

// Memory — неограниченная FIFO-очередь приёма в памяти. Производителей
// может быть много (обработчики вебхука), потребитель ровно один —
// воркер. Содержимое теряется при перезапуске процесса; это осознанное
// ограничение, а не дефект.
type Memory struct {
	mu     sync.Mutex
	items  []domain.QueueItem
	signal chan struct{}
}

var _ domain.IntakeQueue = (*Memory)(nil)

// NewMemory создаёт пустую очередь.
func NewMemory() *Memory {
	return &Memory{signal: make(chan struct{}, 1)}
}

// Push добавляет элемент в хвост очереди. Никогда не блокируется.
// Повтор обработки — это тот же Push: элемент встаёт в конец.
func (q *Memory) Push(item domain.QueueItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop возвращает голову очереди, при пустой очереди ждёт нового
// элемента или отмены контекста.
func (q *Memory) Pop(ctx context.Context) (domain.QueueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.QueueItem{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len возвращает текущую длину очереди.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
