package rabbittest

import "sync"

// pump forwards values to out in order without ever blocking the producer.
// out is closed once the pump stops.
type pump[T any] struct {
	mu       sync.Mutex
	items    []T
	signal   chan struct{}
	out      chan T
	done     chan struct{}
	stopOnce sync.Once
}

func newPump[T any](out chan T) *pump[T] {
	p := &pump[T]{
		signal: make(chan struct{}, 1),
		out:    out,
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pump[T]) push(v T) {
	p.mu.Lock()
	p.items = append(p.items, v)
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *pump[T]) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *pump[T]) run() {
	defer close(p.out)
	for {
		p.mu.Lock()
		if len(p.items) == 0 {
			p.mu.Unlock()
			select {
			case <-p.signal:
				continue
			case <-p.done:
				return
			}
		}
		v := p.items[0]
		p.items = p.items[1:]
		p.mu.Unlock()

		select {
		case p.out <- v:
		case <-p.done:
			return
		}
	}
}
