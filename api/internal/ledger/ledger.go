// Package ledger хранит статусы обработки по processing id.
package ledger

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"lexie-server/api/internal/types"
)

type Stage string

const (
	StageStarted      Stage = "started"
	StageTranscribing Stage = "transcribing"
	StageClassifying  Stage = "classifying"
	StageGenerating   Stage = "generating"
	StageCompleted    Stage = "completed"
	StageError        Stage = "error"
	StageUnknown      Stage = "unknown"
)

type Record struct {
	ID        string        `json:"id"`
	Stage     Stage         `json:"stage"`
	Timestamp int64         `json:"timestamp"` // unix ms последнего изменения
	Result    *types.Result `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Store - потокобезопасное хранилище записей. capacity > 0 ограничивает число записей:
// при переполнении выкидывается запись, которая дольше всех не менялась.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record          // capacity == 0
	lru     *lru.Cache[string, *Record] // capacity > 0
	now     func() time.Time
}

func New(capacity int) *Store {
	s := &Store{now: time.Now}
	if capacity > 0 {
		// ошибка только при size <= 0
		s.lru, _ = lru.New[string, *Record](capacity)
	} else {
		s.records = make(map[string]*Record)
	}
	return s
}

func (s *Store) Create(id string) {
	s.upsert(id, StageStarted, nil, "")
}

// Advance создаёт запись, если её ещё нет; result не трогает.
func (s *Store) Advance(id string, stage Stage) {
	s.upsert(id, stage, nil, "")
}

func (s *Store) Complete(id string, result *types.Result) {
	s.upsert(id, StageCompleted, result, "")
}

func (s *Store) Fail(id string, err error) {
	msg := "failed"
	if err != nil {
		msg = err.Error()
	}
	s.upsert(id, StageError, nil, msg)
}

// Get возвращает копию записи.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.peek(id)
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Result - результат завершённой записи.
func (s *Store) Result(id string) (*types.Result, bool) {
	r, ok := s.Get(id)
	if !ok || r.Result == nil {
		return nil, false
	}
	return r.Result, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lru != nil {
		return s.lru.Len()
	}
	return len(s.records)
}

func (s *Store) upsert(id string, stage Stage, result *types.Result, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.peek(id)
	if !ok {
		r = &Record{ID: id}
	}
	r.Stage = stage
	r.Timestamp = s.now().UnixMilli()
	if result != nil {
		r.Result = result
	}
	if errMsg != "" {
		r.Error = errMsg
	}
	s.put(id, r)
}

// peek не трогает порядок вытеснения: чтение статуса запись не освежает.
func (s *Store) peek(id string) (*Record, bool) {
	if s.lru != nil {
		return s.lru.Peek(id)
	}
	r, ok := s.records[id]
	return r, ok
}

// put освежает запись; при переполнении lru выкидывает самую давно изменённую.
func (s *Store) put(id string, r *Record) {
	if s.lru != nil {
		s.lru.Add(id, r)
		return
	}
	s.records[id] = r
}
