package events

import (
	"context"
	"slices"
	"sync"
)

// Recorder запоминает опубликованные события. Используется в тестах и при STORAGE=memory.
type Recorder struct {
	mu  sync.Mutex
	evs []Event
}

func (r *Recorder) Publish(_ context.Context, evs ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, evs...)
	return nil
}

// Events возвращает копию всех событий
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.evs)
}

// OfType возвращает события указанного типа
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Fanout отправляет события во все издатели по очереди
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evs ...Event) error {
	for _, p := range f {
		if err := p.Publish(ctx, evs...); err != nil {
			return err
		}
	}
	return nil
}
