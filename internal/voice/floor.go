package voice

import "sync"

// Holder names who owns the audio floor.
type Holder int

const (
	Nobody Holder = iota
	Input
	Output
)

func (h Holder) String() string {
	switch h {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "nobody"
	}
}

// Floor is the single speech resource shared by the listener and the
// speaker. Taking it releases the previous holder before the new holder is
// activated, and activations are serialized, so both sides are never active
// at once.
//
// Every Take hands out a new lease. Leave only gives the floor up for the
// lease that is still current, so an engine callback that ends an old session
// cannot release a newer one.
type Floor struct {
	turn sync.Mutex // serializes Take and Hold

	mu      sync.Mutex
	holder  Holder
	lease   uint64
	release func()
}

// Take makes h the holder. A different previous holder is released first;
// then activate runs with the new lease. If activate fails the floor is left
// again.
func (f *Floor) Take(h Holder, release func(), activate func(lease uint64) error) error {
	f.turn.Lock()
	defer f.turn.Unlock()

	f.mu.Lock()
	var prev func()
	if f.holder != Nobody && f.holder != h {
		prev = f.release
	}
	f.lease++
	lease := f.lease
	f.holder, f.release = h, release
	f.mu.Unlock()

	if prev != nil {
		prev()
	}

	if err := activate(lease); err != nil {
		f.Leave(h, lease)
		return err
	}
	return nil
}

// Leave gives the floor up if h still holds it under lease. It is safe to
// call from engine callbacks, even while a Take is in progress.
func (f *Floor) Leave(h Holder, lease uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holder == h && f.lease == lease {
		f.holder, f.release = Nobody, nil
	}
}

// Hold runs fn while no Take can be in progress, giving fn a consistent view
// of both sides.
func (f *Floor) Hold(fn func()) {
	f.turn.Lock()
	defer f.turn.Unlock()
	fn()
}
