package ingest

import (
	"sync"

	"tg-release-bot/internal/domain"
)

// InsertResult сообщает вызывающему, как прошла вставка в батч.
type InsertResult int

const (
	// FirstInsert — создан новый батч; вызывающий обязан запланировать
	// ровно один сброс для этого ключа.
	FirstInsert InsertResult = iota
	// Appended — файл добавлен в уже открытый батч.
	Appended
)

// Registry хранит открытые батчи по ключу (владелец, ключ релиза).
// Инвариант: батч существует тогда и только тогда, когда для него
// запланирован и ещё не завершён сброс. Insert и Drain атомарны, поэтому
// гонка «кто первый вставил» выражена возвращаемым значением, а не
// проверками существования на стороне вызывающего.
type Registry struct {
	mu      sync.Mutex
	buckets map[int64]map[string][]domain.ArchiveCopy
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[int64]map[string][]domain.ArchiveCopy)}
}

// Insert добавляет копию в батч (ownerID, key). Порядок внутри батча —
// порядок прихода к мьютексу реестра.
func (r *Registry) Insert(ownerID int64, key string, item domain.ArchiveCopy) InsertResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.buckets[ownerID]
	if !ok {
		owner = make(map[string][]domain.ArchiveCopy)
		r.buckets[ownerID] = owner
	}
	existing, ok := owner[key]
	owner[key] = append(existing, item)
	if !ok {
		return FirstInsert
	}
	return Appended
}

// Drain атомарно забирает и удаляет батч. Пустая под-карта владельца
// удаляется вместе с ключом: после сброса реестр не хранит следов.
func (r *Registry) Drain(ownerID int64, key string) []domain.ArchiveCopy {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.buckets[ownerID]
	if !ok {
		return nil
	}
	msgs := owner[key]
	delete(owner, key)
	if len(owner) == 0 {
		delete(r.buckets, ownerID)
	}
	return msgs
}

// Open возвращает число открытых батчей.
func (r *Registry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, owner := range r.buckets {
		total += len(owner)
	}
	return total
}

// HasOwner сообщает, остались ли у владельца открытые батчи.
func (r *Registry) HasOwner(ownerID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.buckets[ownerID]
	return ok
}
