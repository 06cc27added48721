package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
)

var sample = []models.Record{
	{Instruction: "You are helpful.", Input: "What is red?", Output: "A color."},
	{Instruction: "You are helpful.", Input: "Is <b> & tags ok?", Output: "Yes."},
}

func TestSave_JSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dataset.json")

	require.NoError(t, Save(path, sample))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := `[
  {
    "instruction": "You are helpful.",
    "input": "What is red?",
    "output": "A color."
  },
  {
    "instruction": "You are helpful.",
    "input": "Is <b> & tags ok?",
    "output": "Yes."
  }
]
`
	assert.Equal(t, want, string(data))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sample, loaded)
}

func TestSave_JSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.jsonl")

	require.NoError(t, NewFileWriter(path).Write(sample))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"instruction":"You are helpful.","input":"What is red?","output":"A color."}`+"\n"+
			`{"instruction":"You are helpful.","input":"Is <b> & tags ok?","output":"Yes."}`+"\n",
		string(data))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sample, loaded)
}

func TestSave_ReplacesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, Save(path, sample[:1]))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")

	assert.ErrorIs(t, Save(path, nil), ErrEmpty)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
