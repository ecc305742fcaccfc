package resumable

import "sync"

// sessionState — полученные номера чанков одной сессии.
type sessionState struct {
	total     int64
	received  map[int64]struct{}
	assembled bool
}

// Tracker хранит для каждой сессии набор полученных чанков, чтобы проверка
// завершённости занимала O(1) вместо обхода файловой системы.
// Сессия, которой нет в трекере (например, после рестарта), засевается сканом диска.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewTracker создаёт пустой трекер.
func NewTracker() *Tracker {
	return &Tracker{sessions: map[string]*sessionState{}}
}

// Known сообщает, есть ли состояние для сессии с таким числом чанков.
func (t *Tracker) Known(identifier string, total int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[identifier]
	return ok && st.total == total
}

// Seed заменяет состояние сессии набором чанков, найденных на диске.
func (t *Tracker) Seed(identifier string, total int64, present []int64) {
	st := &sessionState{total: total, received: make(map[int64]struct{}, len(present))}
	for _, n := range present {
		if n >= 1 && n <= total {
			st.received[n] = struct{}{}
		}
	}

	t.mu.Lock()
	t.sessions[identifier] = st
	t.mu.Unlock()
}

// Mark отмечает чанк полученным. Если число чанков сессии изменилось, состояние сбрасывается.
func (t *Tracker) Mark(identifier string, total, chunkNumber int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[identifier]
	if !ok || st.total != total {
		st = &sessionState{total: total, received: map[int64]struct{}{}}
		t.sessions[identifier] = st
	}
	st.received[chunkNumber] = struct{}{}
}

// Complete возвращает true, когда получены все чанки 1..total.
func (t *Tracker) Complete(identifier string, total int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[identifier]
	return ok && st.total == total && int64(len(st.received)) == total
}

// Received возвращает число полученных чанков сессии.
func (t *Tracker) Received(identifier string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.sessions[identifier]; ok {
		return int64(len(st.received))
	}
	return 0
}

// MarkAssembled фиксирует, что файл сессии уже собран.
func (t *Tracker) MarkAssembled(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.sessions[identifier]; ok {
		st.assembled = true
	}
}

// Assembled сообщает, собрана ли уже сессия.
func (t *Tracker) Assembled(identifier string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.sessions[identifier]
	return ok && st.assembled
}

// Forget удаляет состояние сессии.
func (t *Tracker) Forget(identifier string) {
	t.mu.Lock()
	delete(t.sessions, identifier)
	t.mu.Unlock()
}
