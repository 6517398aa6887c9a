package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexMethod(t *testing.T, answersDbHandler *AnswersDBHandler) string {
	var method string
	err := answersDbHandler.db.Instance.QueryRow(`
		SELECT am.amname
		FROM pg_class c
		JOIN pg_am am ON am.oid = c.relam
		WHERE c.relname = 'idx_graded_answers_embedding'`,
	).Scan(&method)
	require.NoError(t, err, "Expected embedding index to exist")
	return method
}

func TestAnswersChangeIndexType(t *testing.T) {
	database := initDB(t)

	_, err := NewRunsDBHandler(database, true)
	require.NoError(t, err, "Expected NewRunsDBHandler to not return an error")
	answersDbHandler, err := NewAnswersDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err, "Expected NewAnswersDBHandler to not return an error")

	t.Run("Change to ivfflat", func(t *testing.T) {
		err := answersDbHandler.ChangeIndexType(context.Background(), "ivfflat", VectorIndexOptions{Lists: 10})
		assert.NoError(t, err, "Expected ChangeIndexType to not return an error")
		assert.Equal(t, "ivfflat", indexMethod(t, answersDbHandler), "Expected an ivfflat index")
	})

	t.Run("Change back to hnsw", func(t *testing.T) {
		err := answersDbHandler.ChangeIndexType(context.Background(), "hnsw", VectorIndexOptions{})
		assert.NoError(t, err, "Expected ChangeIndexType to not return an error")
		assert.Equal(t, "hnsw", indexMethod(t, answersDbHandler), "Expected an hnsw index")
	})

	t.Run("Unsupported index type keeps the index", func(t *testing.T) {
		err := answersDbHandler.ChangeIndexType(context.Background(), "btree", VectorIndexOptions{})
		assert.Error(t, err, "Expected ChangeIndexType to reject unknown index types")
		assert.Equal(t, "hnsw", indexMethod(t, answersDbHandler), "Expected the previous index to remain")
	})
}
