package ledger

import "sync"

// pairLock serializes settlement for one ordered (group, debtor,
// creditor) key while unrelated pairs proceed in parallel. It plays the
// advisory-lock role for the single-process SQLite deployment; the
// conditional split transition in the store keeps settlement exactly
// once even without it.
//
// Entries are reference-counted so the map does not grow without bound:
// the last unlocker of a key removes it.
type pairLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newPairLock() *pairLock {
	return &pairLock{entries: make(map[string]*lockEntry)}
}

// Lock acquires the lock for key, blocking while another holder has it.
func (p *pairLock) Lock(key string) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		e = &lockEntry{}
		p.entries[key] = e
	}
	e.refs++
	p.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key.
func (p *pairLock) Unlock(key string) {
	p.mu.Lock()
	e := p.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(p.entries, key)
	}
	p.mu.Unlock()

	e.mu.Unlock()
}
