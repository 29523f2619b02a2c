// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/lexingest/core"
	"github.com/poiesic/lexingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, identity storage.Identity) storage.DocumentRepository {
	t.Helper()
	repo, backend, err := NewMemoryRepository(identity)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func testDoc(title, content string) *core.KnowledgeDocument {
	return &core.KnowledgeDocument{
		Title:       title,
		ContentText: content,
		Category:    "civil",
		SourceName:  "test",
		IsActive:    true,
		ChunkCount:  1,
	}
}

func TestInsertDocument_New(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	result, err := repo.InsertDocument(ctx, testDoc("Art 1", "Content one"), storage.DedupSkip)
	require.NoError(t, err)

	assert.False(t, result.Deduplicated)
	assert.NotZero(t, result.Doc.Id)
	assert.Equal(t, core.EmbeddingPending, result.Doc.EmbeddingStatus)
	assert.Zero(t, result.Doc.EmbeddingAttempts)
	assert.False(t, result.Doc.InsertedAt.IsZero())

	got, err := repo.GetDocument(ctx, result.Doc.Id)
	require.NoError(t, err)
	assert.Equal(t, "Art 1", got.Title)
	assert.Equal(t, "Content one", got.ContentText)
}

func TestInsertDocument_ContentIdentityIsDeterministic(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	first, err := repo.InsertDocument(ctx, testDoc("Art 1", "Same content"), storage.DedupSkip)
	require.NoError(t, err)

	second, err := repo.InsertDocument(ctx, testDoc("Art 1", "Same content"), storage.DedupSkip)
	require.NoError(t, err)

	assert.Equal(t, first.Doc.Id, second.Doc.Id)
	assert.True(t, second.Deduplicated, "re-ingesting identical content deduplicates")
}

func TestInsertDocument_SkipKeepsExisting(t *testing.T) {
	repo := newTestRepo(t, storage.IdentitySourceURL)
	ctx := context.Background()

	original := testDoc("Original", "Original content")
	original.SourceURL = "https://lex.uz/docs/1"
	_, err := repo.InsertDocument(ctx, original, storage.DedupSkip)
	require.NoError(t, err)

	replacement := testDoc("Changed", "Changed content")
	replacement.SourceURL = "https://lex.uz/docs/1"
	result, err := repo.InsertDocument(ctx, replacement, storage.DedupSkip)
	require.NoError(t, err)

	assert.True(t, result.Deduplicated)
	assert.Equal(t, "Original", result.Doc.Title, "skip mode keeps the stored document")
}

func TestInsertDocument_UpsertReplacesAndResetsEmbedding(t *testing.T) {
	repo := newTestRepo(t, storage.IdentitySourceURL)
	ctx := context.Background()

	original := testDoc("Original", "Original content")
	original.SourceURL = "https://lex.uz/docs/2"
	first, err := repo.InsertDocument(ctx, original, storage.DedupSkip)
	require.NoError(t, err)

	// Give the stored doc an embedding so the reset is observable.
	require.NoError(t, repo.SetEmbeddingSuccess(ctx, first.Doc.Id, []float64{1, 0}))

	replacement := testDoc("Updated", "Updated content")
	replacement.SourceURL = "https://lex.uz/docs/2"
	result, err := repo.InsertDocument(ctx, replacement, storage.DedupUpsert)
	require.NoError(t, err)

	assert.True(t, result.Deduplicated)
	assert.Equal(t, first.Doc.Id, result.Doc.Id)
	assert.Equal(t, "Updated", result.Doc.Title)
	assert.Equal(t, core.EmbeddingPending, result.Doc.EmbeddingStatus,
		"changed content invalidates the stored vector")
	assert.Zero(t, result.Doc.EmbeddingAttempts)
	assert.Nil(t, result.Doc.Embedding)
}

func TestInsertDocument_Invalid(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	_, err := repo.InsertDocument(ctx, testDoc("", "content"), storage.DedupSkip)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	_, err = repo.InsertDocument(ctx, testDoc("t", "c"), storage.DedupMode(42))
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestGetDocument_NotFound(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)

	_, err := repo.GetDocument(context.Background(), core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSelectForEmbedding_AscendingAttempts(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	// One pending doc and two failed docs with different attempt counts.
	pending, err := repo.InsertDocument(ctx, testDoc("pending", "pending content"), storage.DedupSkip)
	require.NoError(t, err)

	failedOnce, err := repo.InsertDocument(ctx, testDoc("failed once", "failed once content"), storage.DedupSkip)
	require.NoError(t, err)
	failDocTimes(t, repo, failedOnce.Doc.Id, 1)

	failedThrice, err := repo.InsertDocument(ctx, testDoc("failed thrice", "failed thrice content"), storage.DedupSkip)
	require.NoError(t, err)
	failDocTimes(t, repo, failedThrice.Doc.Id, 3)

	docs, err := repo.SelectForEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, pending.Doc.Id, docs[0].Id, "zero attempts first")
	assert.Equal(t, failedOnce.Doc.Id, docs[1].Id)
	assert.Equal(t, failedThrice.Doc.Id, docs[2].Id)
}

func TestSelectForEmbedding_LimitRespected(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.InsertDocument(ctx, testDoc(fmt.Sprintf("doc %d", i), fmt.Sprintf("content %d", i)), storage.DedupSkip)
		require.NoError(t, err)
	}

	docs, err := repo.SelectForEmbedding(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = repo.SelectForEmbedding(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestRecordAttempt(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	inserted, err := repo.InsertDocument(ctx, testDoc("doc", "content"), storage.DedupSkip)
	require.NoError(t, err)

	updated, err := repo.RecordAttempt(ctx, inserted.Doc.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.EmbeddingAttempts)
	assert.False(t, updated.EmbeddingLastAttempt.IsZero())

	updated, err = repo.RecordAttempt(ctx, inserted.Doc.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.EmbeddingAttempts, "attempts increment monotonically")

	_, err = repo.RecordAttempt(ctx, core.ID(999))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetEmbeddingSuccessAndFailure(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	inserted, err := repo.InsertDocument(ctx, testDoc("doc", "content"), storage.DedupSkip)
	require.NoError(t, err)
	id := inserted.Doc.Id

	require.NoError(t, repo.SetEmbeddingFailure(ctx, id, "boom"))
	doc, err := repo.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingFailed, doc.EmbeddingStatus)
	assert.Equal(t, "boom", doc.EmbeddingError)

	require.NoError(t, repo.SetEmbeddingSuccess(ctx, id, []float64{0.6, 0.8}))
	doc, err = repo.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingSuccess, doc.EmbeddingStatus)
	assert.Equal(t, []float64{0.6, 0.8}, doc.Embedding)
	assert.Empty(t, doc.EmbeddingError, "success clears the failure message")

	// Successful docs leave the selection pool.
	docs, err := repo.SelectForEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSetEmbeddingFailure_TruncatesMessage(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	inserted, err := repo.InsertDocument(ctx, testDoc("doc", "content"), storage.DedupSkip)
	require.NoError(t, err)

	long := strings.Repeat("e", core.MaxEmbeddingErrorLen*3)
	require.NoError(t, repo.SetEmbeddingFailure(ctx, inserted.Doc.Id, long))

	doc, err := repo.GetDocument(ctx, inserted.Doc.Id)
	require.NoError(t, err)
	assert.Len(t, doc.EmbeddingError, core.MaxEmbeddingErrorLen)
}

func TestDeadLetters_ExcludedAndReset(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	inserted, err := repo.InsertDocument(ctx, testDoc("doc", "content"), storage.DedupSkip)
	require.NoError(t, err)
	id := inserted.Doc.Id

	failDocTimes(t, repo, id, core.DeadLetterThreshold)

	docs, err := repo.SelectForEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, docs, "dead-lettered docs never reappear in selection")

	eligible, err := repo.CountEligible(ctx)
	require.NoError(t, err)
	assert.Zero(t, eligible)

	dead, err := repo.CountDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dead)

	reset, err := repo.ResetDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	doc, err := repo.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingPending, doc.EmbeddingStatus)
	assert.Zero(t, doc.EmbeddingAttempts)

	docs, err = repo.SelectForEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, docs, 1, "reset re-admits the document")
}

func TestResetDeadLetters_LeavesRetryableAlone(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	inserted, err := repo.InsertDocument(ctx, testDoc("doc", "content"), storage.DedupSkip)
	require.NoError(t, err)
	failDocTimes(t, repo, inserted.Doc.Id, 2)

	reset, err := repo.ResetDeadLetters(ctx)
	require.NoError(t, err)
	assert.Zero(t, reset)

	doc, err := repo.GetDocument(ctx, inserted.Doc.Id)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.EmbeddingAttempts, "retryable failures keep their attempt count")
}

func TestFindSimilar(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	vectors := map[string][]float64{
		"aligned":    {1, 0},
		"diagonal":   {0.7071, 0.7071},
		"orthogonal": {0, 1},
	}
	for name, vec := range vectors {
		inserted, err := repo.InsertDocument(ctx, testDoc(name, name+" content"), storage.DedupSkip)
		require.NoError(t, err)
		require.NoError(t, repo.SetEmbeddingSuccess(ctx, inserted.Doc.Id, vec))
	}

	results, err := repo.FindSimilar(ctx, []float64{1, 0}, 0.5, 10)
	require.NoError(t, err)

	require.Len(t, results, 2, "orthogonal doc falls below the similarity floor")
	assert.Equal(t, "aligned", results[0].Doc.Title)
	assert.Equal(t, "diagonal", results[1].Doc.Title)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_SkipsUnembeddedAndLimits(t *testing.T) {
	repo := newTestRepo(t, storage.IdentityContent)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		inserted, err := repo.InsertDocument(ctx, testDoc(fmt.Sprintf("doc %d", i), fmt.Sprintf("content %d", i)), storage.DedupSkip)
		require.NoError(t, err)
		require.NoError(t, repo.SetEmbeddingSuccess(ctx, inserted.Doc.Id, []float64{1, 0}))
	}
	// One pending doc without a vector.
	_, err := repo.InsertDocument(ctx, testDoc("pending", "no vector yet"), storage.DedupSkip)
	require.NoError(t, err)

	results, err := repo.FindSimilar(ctx, []float64{1, 0}, 0.0, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

// failDocTimes records n attempt/failure rounds for a document.
func failDocTimes(t *testing.T, repo storage.DocumentRepository, id core.ID, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := repo.RecordAttempt(ctx, id)
		require.NoError(t, err)
		require.NoError(t, repo.SetEmbeddingFailure(ctx, id, "induced failure"))
	}
}
