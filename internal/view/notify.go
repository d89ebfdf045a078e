package view

// Subscribe registers a listener and returns its channel and an unsubscribe
// func. The channel carries new ETags.
func (v *View) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 1)
	v.subsMu.Lock()
	v.subs[ch] = struct{}{}
	v.subsMu.Unlock()

	unsub := func() {
		v.subsMu.Lock()
		if _, ok := v.subs[ch]; ok {
			delete(v.subs, ch)
			close(ch)
		}
		v.subsMu.Unlock()
	}
	return ch, unsub
}

// Subscribers returns the number of listeners.
func (v *View) Subscribers() int {
	v.subsMu.Lock()
	defer v.subsMu.Unlock()
	return len(v.subs)
}

// publishUpdate notifies all listeners (non-blocking).
func (v *View) publishUpdate(etag string) {
	v.subsMu.Lock()
	defer v.subsMu.Unlock()
	for ch := range v.subs {
		select {
		case ch <- etag:
		default: // if client is slow, skip instead of blocking
		}
	}
}
