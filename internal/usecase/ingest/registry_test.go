package ingest

import (
	"sync"
	"sync/atomic"
	"testing"

	"tg-release-bot/internal/domain"
)

func TestRegistryFirstInsertOnce(t *testing.T) {
	r := NewRegistry()

	if res := r.Insert(1, "show_2020", domain.ArchiveCopy{MessageID: 1}); res != FirstInsert {
		t.Fatalf("первая вставка должна вернуть FirstInsert")
	}
	if res := r.Insert(1, "show_2020", domain.ArchiveCopy{MessageID: 2}); res != Appended {
		t.Fatalf("вторая вставка должна вернуть Appended")
	}
	if res := r.Insert(1, "other_0000", domain.ArchiveCopy{MessageID: 3}); res != FirstInsert {
		t.Fatalf("другой ключ открывает новый батч")
	}
	if res := r.Insert(2, "show_2020", domain.ArchiveCopy{MessageID: 4}); res != FirstInsert {
		t.Fatalf("тот же ключ другого владельца открывает новый батч")
	}
}

func TestRegistryConcurrentInsertSingleFirst(t *testing.T) {
	r := NewRegistry()
	const inserters = 32

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < inserters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if r.Insert(7, "movie_2021", domain.ArchiveCopy{MessageID: id}) == FirstInsert {
				firsts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if firsts.Load() != 1 {
		t.Fatalf("FirstInsert должен случиться ровно один раз, случился %d", firsts.Load())
	}
	if got := len(r.Drain(7, "movie_2021")); got != inserters {
		t.Fatalf("ожидали %d копий в батче, получили %d", inserters, got)
	}
}

func TestRegistryDrainRemovesAllTraces(t *testing.T) {
	r := NewRegistry()
	r.Insert(1, "show_2020", domain.ArchiveCopy{MessageID: 1})
	r.Insert(1, "show_2020", domain.ArchiveCopy{MessageID: 2})

	msgs := r.Drain(1, "show_2020")
	if len(msgs) != 2 {
		t.Fatalf("ожидали 2 копии, получили %d", len(msgs))
	}
	if msgs[0].MessageID != 1 || msgs[1].MessageID != 2 {
		t.Fatalf("порядок вставки должен сохраняться: %v", msgs)
	}

	if r.Open() != 0 {
		t.Fatalf("после сброса реестр должен быть пуст, открыто %d", r.Open())
	}
	if r.HasOwner(1) {
		t.Fatal("под-карта владельца должна быть удалена после сброса")
	}
}

func TestRegistryDrainKeepsSiblingKeys(t *testing.T) {
	r := NewRegistry()
	r.Insert(1, "a_2020", domain.ArchiveCopy{MessageID: 1})
	r.Insert(1, "b_2021", domain.ArchiveCopy{MessageID: 2})

	r.Drain(1, "a_2020")

	if !r.HasOwner(1) {
		t.Fatal("владелец с открытым батчем не должен удаляться")
	}
	if got := len(r.Drain(1, "b_2021")); got != 1 {
		t.Fatalf("соседний ключ не должен пострадать, получили %d", got)
	}
}

func TestRegistryDrainMissing(t *testing.T) {
	r := NewRegistry()
	if msgs := r.Drain(9, "nope_0000"); msgs != nil {
		t.Fatalf("сброс несуществующего ключа должен вернуть nil, получили %v", msgs)
	}
}
