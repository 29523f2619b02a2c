package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/lexingest/core"
)

// Key prefixes for different data types. Every key is scoped to a collection
// so multiple logical tables share one BadgerDB instance.
const (
	documentPrefix    = "kbdoc"
	statusIndexPrefix = "kbdocst"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(collection string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", documentPrefix, collection, id))
}

// makeDocumentScanPrefix generates the prefix covering all documents of a
// collection.
func makeDocumentScanPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, collection))
}

// makeStatusIndexKey generates a composite key for the embedding-status index.
// Format: prefix:collection:status:attempts:id
// Attempts are written BigEndian so iteration within one status prefix walks
// documents in ascending attempt order, which is exactly the batch worker's
// selection order.
func makeStatusIndexKey(collection string, status core.EmbeddingStatus, attempts int, id core.ID) []byte {
	prefix := makeStatusScanPrefix(collection, status)
	buf := make([]byte, len(prefix)+4+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(attempts))
	offset += 4
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeStatusScanPrefix generates the prefix covering one status within a
// collection.
func makeStatusScanPrefix(collection string, status core.EmbeddingStatus) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:", statusIndexPrefix, collection, status))
}

// statusIndexAttempts extracts the attempt count encoded in a status index key.
func statusIndexAttempts(key, prefix []byte) int {
	return int(binary.BigEndian.Uint32(key[len(prefix):]))
}
