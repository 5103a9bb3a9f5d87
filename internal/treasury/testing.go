package treasury

// SeedEntry is a test helper that sets the entry for an asset when using
// the in-memory store.
func SeedEntry(s Store, asset string, balance, liability int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.entries[asset] = Entry{Balance: balance, Liability: liability}
	}
}
