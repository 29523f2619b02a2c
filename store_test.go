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


package lexingest

import (
	"context"
	"testing"

	"github.com/poiesic/lexingest/ai"
	"github.com/poiesic/lexingest/core"
	"github.com/poiesic/lexingest/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore("", WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// Full pipeline: enqueue text, run the queue, run the batch worker, search.
func TestStore_IngestEmbedSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	q, err := store.NewQueue(nil, queue.WithInterItemYield(0))
	require.NoError(t, err)
	defer q.Release()

	q.Enqueue(core.TextSource{
		Title: "Civil Code Article 51",
		Text:  "Juridical persons acquire civil rights and assume civil obligations.",
	})
	q.Enqueue(core.TextSource{
		Title: "Criminal Procedure",
		Text:  "Criminal proceedings follow the procedure established by this code.",
	})
	require.NoError(t, q.Run(ctx))

	for _, item := range q.Items() {
		require.Equal(t, core.StageInserted, item.Stage, "item %s", item.Label)
	}

	worker, err := store.NewBatchWorker()
	require.NoError(t, err)

	result, err := worker.RunBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedDocs)
	assert.Zero(t, result.TotalRemaining)

	results, err := store.Search(ctx, "juridical persons civil rights", 0.0, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Civil Code Article 51", results[0].Doc.Title,
		"the matching document ranks first")
}

func TestStore_UnknownProvider(t *testing.T) {
	cfg := ai.NewConfig(ai.WithProvider("sorcery"))
	_, err := NewStore("", WithInMemory(), WithAIConfig(cfg))
	assert.Error(t, err)
}
