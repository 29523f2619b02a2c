package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for persisted types. Timestamps are stored as
// Unix microseconds; vectors as a varint length followed by raw components.

// IDMUS serializes IDs for keys and index values.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

// KnowledgeDocumentMUS serializes KnowledgeDocument values.
var KnowledgeDocumentMUS = knowledgeDocumentMUS{}

type knowledgeDocumentMUS struct{}

func (s knowledgeDocumentMUS) Marshal(v KnowledgeDocument, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.ContentText, bs[n:])
	n += ord.String.Marshal(v.Category, bs[n:])
	n += ord.String.Marshal(v.SourceName, bs[n:])
	n += ord.String.Marshal(v.SourceURL, bs[n:])
	n += ord.Bool.Marshal(v.IsActive, bs[n:])
	n += varint.Int.Marshal(v.ChunkCount, bs[n:])
	n += varint.Int.Marshal(int(v.EmbeddingStatus), bs[n:])
	n += varint.Int.Marshal(v.EmbeddingAttempts, bs[n:])
	n += marshalTime(v.EmbeddingLastAttempt, bs[n:])
	n += ord.String.Marshal(v.EmbeddingError, bs[n:])
	n += marshalVector(v.Embedding, bs[n:])
	n += marshalTime(v.InsertedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (s knowledgeDocumentMUS) Unmarshal(bs []byte) (v KnowledgeDocument, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if v.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ContentText, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Category, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.SourceName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.SourceURL, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.IsActive, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var status int
	if status, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	v.EmbeddingStatus = EmbeddingStatus(status)
	n += n1
	if v.EmbeddingAttempts, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.EmbeddingLastAttempt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.EmbeddingError, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Embedding, n1, err = unmarshalVector(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.InsertedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (s knowledgeDocumentMUS) Size(v KnowledgeDocument) (n int) {
	n = IDMUS.Size(v.Id)
	n += ord.String.Size(v.Title)
	n += ord.String.Size(v.ContentText)
	n += ord.String.Size(v.Category)
	n += ord.String.Size(v.SourceName)
	n += ord.String.Size(v.SourceURL)
	n += ord.Bool.Size(v.IsActive)
	n += varint.Int.Size(v.ChunkCount)
	n += varint.Int.Size(int(v.EmbeddingStatus))
	n += varint.Int.Size(v.EmbeddingAttempts)
	n += sizeTime(v.EmbeddingLastAttempt)
	n += ord.String.Size(v.EmbeddingError)
	n += sizeVector(v.Embedding)
	n += sizeTime(v.InsertedAt)
	n += sizeTime(v.UpdatedAt)
	return n
}

// Time helpers. The zero time is stored as a distinguishable sentinel so it
// round-trips as zero.

const zeroTimeSentinel = int64(-1 << 62)

func marshalTime(t time.Time, bs []byte) int {
	if t.IsZero() {
		return varint.Int64.Marshal(zeroTimeSentinel, bs)
	}
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == zeroTimeSentinel {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	if t.IsZero() {
		return varint.Int64.Size(zeroTimeSentinel)
	}
	return varint.Int64.Size(t.UnixMicro())
}

// Vector helpers.

func marshalVector(v []float64, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, c := range v {
		n += varint.Float64.Marshal(c, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float64, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v = make([]float64, length)
	var n1 int
	for i := 0; i < length; i++ {
		if v[i], n1, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += n1
	}
	return v, n, nil
}

func sizeVector(v []float64) (n int) {
	n = varint.Int.Size(len(v))
	for _, c := range v {
		n += varint.Float64.Size(c)
	}
	return n
}
