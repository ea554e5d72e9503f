package badger

// Key layout
const (
	documentPrefix = "docrec:"
	documentSeq    = "docseq"
	manifestKey    = "manifest"
)

// makeDocumentKey generates the key for a document by ID.
func makeDocumentKey(id string) []byte {
	buf := make([]byte, len(documentPrefix)+len(id))
	n := copy(buf, documentPrefix)
	copy(buf[n:], id)
	return buf
}

// documentIDFromKey is the inverse of makeDocumentKey.
func documentIDFromKey(key []byte) string {
	return string(key[len(documentPrefix):])
}
