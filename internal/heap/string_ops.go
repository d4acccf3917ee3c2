package heap

// StringBytes returns the string object's immutable payload. Strings
// never move or mutate in place after construction, so no acquireRef
// dance is needed: only compaction ever changes which tenure ledger
// slot backs the object, and that never touches strBytes.
func StringBytes(v Value) []byte {
	return v.object().strBytes
}

// StringLen returns the string's cached length.
func StringLen(v Value) int {
	return len(v.object().strBytes)
}

// StringHash returns the string's FNV-1a hash, computing and caching it
// on first use (hash.go).
func StringHash(v Value) uint32 {
	return stringHash(v.object())
}
