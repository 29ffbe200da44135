package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArchive(t *testing.T) {
	ctx := context.Background()
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	t.Run("save and reopen", func(t *testing.T) {
		info, err := archive.Save(ctx, "batch-1", "kaspi.xlsx", strings.NewReader("workbook bytes"))
		require.NoError(t, err)
		assert.Equal(t, "kaspi.xlsx", info.Name)
		assert.Equal(t, int64(len("workbook bytes")), info.Size)

		r, opened, err := archive.Open(ctx, "batch-1", info.ID)
		require.NoError(t, err)
		defer r.Close()

		content, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "workbook bytes", string(content))
		assert.Equal(t, info.ID, opened.ID)
	})

	t.Run("list is scoped to the batch", func(t *testing.T) {
		_, err := archive.Save(ctx, "batch-2", "halyk.xlsx", strings.NewReader("other"))
		require.NoError(t, err)

		infos, err := archive.List(ctx, "batch-2")
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "halyk.xlsx", infos[0].Name)
	})

	t.Run("unknown batch lists empty", func(t *testing.T) {
		infos, err := archive.List(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("path separators are stripped from names", func(t *testing.T) {
		info, err := archive.Save(ctx, "batch-3", "../escape.xlsx", strings.NewReader("x"))
		require.NoError(t, err)
		assert.NotContains(t, info.Path, "..")
	})
}
