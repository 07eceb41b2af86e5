package cache

// BackingStore is the memory behind the cache. *model.Memory satisfies it.
type BackingStore interface {
	// Read fetches size bytes starting at addr.
	Read(addr uint64, size int) []byte
}
