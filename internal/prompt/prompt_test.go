package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader(input string) (*Reader, *bytes.Buffer) {
	var out bytes.Buffer
	return NewReader(strings.NewReader(input), &out), &out
}

func TestReader_Line(t *testing.T) {
	r, out := newReader("  http://localhost:8000/v1/chat/completions  \n")

	line, err := r.Line("Endpoint:")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/v1/chat/completions", line)
	assert.Contains(t, out.String(), "Endpoint:")

	_, err = r.Line("Again:")
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestReader_Block(t *testing.T) {
	t.Run("stops at sentinel", func(t *testing.T) {
		r, _ := newReader("Versatile questions\nabout Pakistan\nEND\nleftover\n")

		block, err := r.Block("Topic:", "END")
		require.NoError(t, err)
		assert.Equal(t, "Versatile questions\nabout Pakistan", block)

		next, err := r.Line("next")
		require.NoError(t, err)
		assert.Equal(t, "leftover", next)
	})

	t.Run("stops at end of input", func(t *testing.T) {
		r, _ := newReader("only line")

		block, err := r.Block("System prompt:", "")
		require.NoError(t, err)
		assert.Equal(t, "only line", block)
	})

	t.Run("empty block", func(t *testing.T) {
		r, _ := newReader("END\n")

		block, err := r.Block("System prompt:", "END")
		require.NoError(t, err)
		assert.Empty(t, block)
	})
}

func TestReader_Int(t *testing.T) {
	r, _ := newReader("42\nabc\n")

	n, err := r.Int("How many?")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = r.Int("How many?")
	assert.Error(t, err)
}

func TestReader_Choose(t *testing.T) {
	r, out := newReader("x\n7\n2\n")

	choice, err := r.Choose("Enter model number:", []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, "beta", choice)

	text := out.String()
	assert.Contains(t, text, "1. alpha")
	assert.Contains(t, text, "3. gamma")
	assert.Contains(t, text, "Invalid input. Enter a number.")
	assert.Contains(t, text, "Invalid selection. Try again.")
}

func TestReader_ChooseRunsOut(t *testing.T) {
	r, _ := newReader("9\n")

	_, err := r.Choose("pick", []string{"only"})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = r.Choose("pick", nil)
	assert.Error(t, err)
}
