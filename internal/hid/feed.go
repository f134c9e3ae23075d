package hid

import "sync"

// KeyEvent is one keyboard event as seen by the terminal UI.
type KeyEvent struct {
	Key string `json:"key"`
	// Editable is true when focus was on an editable field, in which case
	// the keystroke belongs to that field and not to the scanner.
	Editable bool `json:"editable,omitempty"`
}

// Handler receives key events and reports whether it consumed the event.
type Handler func(KeyEvent) bool

// Feed is the keyboard listener registry. Whatever receives raw key
// events (the kiosk API, a tty reader) emits them here.
type Feed struct {
	mu       sync.Mutex
	handlers map[int]Handler
	next     int
}

func NewFeed() *Feed {
	return &Feed{handlers: make(map[int]Handler)}
}

// Listen registers h and returns a function that removes it. The
// returned function is safe to call more than once.
func (f *Feed) Listen(h Handler) (cancel func()) {
	f.mu.Lock()
	id := f.next
	f.next++
	f.handlers[id] = h
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.handlers, id)
			f.mu.Unlock()
		})
	}
}

// Emit delivers ev to every listener and reports whether any of them
// consumed it.
func (f *Feed) Emit(ev KeyEvent) bool {
	f.mu.Lock()
	handlers := make([]Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	consumed := false
	for _, h := range handlers {
		if h(ev) {
			consumed = true
		}
	}
	return consumed
}

// Listeners reports how many handlers are registered.
func (f *Feed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}
