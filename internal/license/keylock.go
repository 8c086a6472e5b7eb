package license

import "sync"

// keyLock serializes activation attempts per license key. Entries are not
// evicted; the map is bounded by the number of distinct keys this instance
// has seen validation traffic for.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLock) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}
