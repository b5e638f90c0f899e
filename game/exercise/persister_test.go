package exercise

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPersister(t *testing.T) *Persister {
	t.Helper()
	dir := t.TempDir()
	p, err := Open(dir, filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPersister_SaveAndGet(t *testing.T) {
	p := openTestPersister(t)

	doc, err := Build(testSource(), 2, Beginner, Answer{Kind: AnswerMainline, Length: 2})
	require.NoError(t, err)
	require.NoError(t, p.Save(doc))

	got, err := p.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.Category, got.Category)
	assert.Equal(t, doc.Question.Stones, got.Question.Stones)

	_, err = p.Get("ex-missing-0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersister_ResaveSameID(t *testing.T) {
	p := openTestPersister(t)

	doc, err := Build(testSource(), 2, Beginner, Answer{Kind: AnswerMainline, Length: 2})
	require.NoError(t, err)
	require.NoError(t, p.Save(doc))
	assert.True(t, p.Exists(doc.ID))

	again, err := Build(testSource(), 2, Advanced, Answer{Kind: AnswerMainline, Length: 1})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID, "same record and index, same id")
	require.NoError(t, p.Save(again))

	list, err := p.List()
	require.NoError(t, err)
	require.Len(t, list, 1, "re-save overwrites, never duplicates")
	assert.Equal(t, Advanced, list[0].Category)
}

func TestPersister_List(t *testing.T) {
	p := openTestPersister(t)

	for _, idx := range []int{1, 3, 5} {
		doc, err := Build(testSource(), idx, Beginner, Answer{Kind: AnswerEngine, PV: []string{"E5"}})
		require.NoError(t, err)
		require.NoError(t, p.Save(doc))
	}

	list, err := p.List()
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestPersister_NoPartialArtifacts(t *testing.T) {
	p := openTestPersister(t)

	doc, err := Build(testSource(), 2, Beginner, Answer{Kind: AnswerMainline, Length: 2})
	require.NoError(t, err)
	require.NoError(t, p.Save(doc))

	entries, err := os.ReadDir(filepath.Join(p.dir, doc.ID))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file %s left behind", e.Name())
	}
}

func TestOpen_Rejections(t *testing.T) {
	_, err := Open("", "")
	assert.Error(t, err)
}
