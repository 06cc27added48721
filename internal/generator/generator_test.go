package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XeTute/Synthetic-Data-Generation/internal/dataset"
	"github.com/XeTute/Synthetic-Data-Generation/internal/metrics"
	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// topicModel invents numbered inputs for list prompts and echoes answers otherwise
func topicModel() *fakeCompleter {
	var next atomic.Int32
	return &fakeCompleter{respond: func(n int, req models.CompletionRequest) (string, error) {
		prompt := userPrompt(req)
		if !strings.HasPrefix(prompt, "Generate exactly") {
			return "answer: " + prompt, nil
		}
		var size int
		if _, err := fmt.Sscanf(prompt, "Generate exactly %d", &size); err != nil {
			return "", err
		}
		items := make([]string, size)
		for i := range items {
			items[i] = fmt.Sprintf("%q", fmt.Sprintf("question %d", next.Add(1)))
		}
		return "```python\n[" + strings.Join(items, ", ") + "]\n```", nil
	}}
}

func testConfig(t *testing.T, samples int) *models.Config {
	cfg := models.DefaultConfig()
	cfg.API.Model = "test-model"
	cfg.Generation.Samples = samples
	cfg.Generation.Topic = "geography"
	cfg.Generation.SystemPrompt = "Answer briefly."
	cfg.Generation.ChunkSize = 2
	cfg.Retry = retry.Config{MaxAttempts: 3}
	cfg.IO.OutputFile = filepath.Join(t.TempDir(), "out")
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestGenerator(cfg *models.Config, c *fakeCompleter, m *metrics.Metrics) (*DatasetGenerator, *bytes.Buffer) {
	g := NewDatasetGenerator(cfg, c, dataset.NewFileWriter(cfg.OutputPath()), m)
	out := &bytes.Buffer{}
	g.Out = out
	return g, out
}

func TestRun_WritesDataset(t *testing.T) {
	cfg := testConfig(t, 3)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	g, out := newTestGenerator(cfg, topicModel(), m)

	summary, err := g.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Saved)
	assert.False(t, summary.Interrupted)
	assert.Equal(t, 3, summary.Inputs)
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, g.RunID, summary.RunID)
	assert.True(t, strings.HasSuffix(summary.Path, "out.json"))

	records, err := dataset.Load(summary.Path)
	require.NoError(t, err)
	assert.Equal(t, []models.Record{
		{Instruction: "Answer briefly.", Input: "question 1", Output: "answer: question 1"},
		{Instruction: "Answer briefly.", Input: "question 2", Output: "answer: question 2"},
		{Instruction: "Answer briefly.", Input: "question 3", Output: "answer: question 3"},
	}, records)

	assert.Contains(t, out.String(), "Statistics:")
	assert.Contains(t, out.String(), "Results saved to")
	expected := `
# HELP sdg_records_total Assembled dataset records
# TYPE sdg_records_total counter
sdg_records_total 3
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "sdg_records_total"))
}

func TestRun_SkipsFailedOutputs(t *testing.T) {
	cfg := testConfig(t, 2)
	base := topicModel()
	fake := &fakeCompleter{respond: func(n int, req models.CompletionRequest) (string, error) {
		if userPrompt(req) == "question 2" {
			return "", nil
		}
		return base.respond(n, req)
	}}
	g, _ := newTestGenerator(cfg, fake, nil)

	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Records)
	assert.Equal(t, 1, summary.Failed)

	records, err := dataset.Load(summary.Path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "question 1", records[0].Input)
}

func TestRun_NoValidSamples(t *testing.T) {
	cfg := testConfig(t, 2)
	g, out := newTestGenerator(cfg, scripted("not a list"), nil)

	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Saved)
	assert.Equal(t, 0, summary.Records)
	assert.Contains(t, out.String(), "No valid samples generated.")
	assert.NoFileExists(t, summary.Path)
}

func TestRun_PermanentErrorDuringCollection(t *testing.T) {
	cfg := testConfig(t, 2)
	denied := retry.Permanent(errors.New("401 unauthorized"))
	fake := &fakeCompleter{respond: func(n int, req models.CompletionRequest) (string, error) {
		return "", denied
	}}
	g, _ := newTestGenerator(cfg, fake, nil)

	summary, err := g.Run(context.Background())
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.False(t, summary.Saved)
	assert.Len(t, fake.Requests(), 1)
}

func TestRun_PermanentErrorDuringOutputsSavesPartial(t *testing.T) {
	cfg := testConfig(t, 3)
	base := topicModel()
	fake := &fakeCompleter{respond: func(n int, req models.CompletionRequest) (string, error) {
		if userPrompt(req) == "question 2" {
			return "", retry.Permanent(errors.New("403 forbidden"))
		}
		return base.respond(n, req)
	}}
	g, _ := newTestGenerator(cfg, fake, nil)

	summary, err := g.Run(context.Background())
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.True(t, summary.Saved)
	assert.Equal(t, 1, summary.Records)
}

func TestRun_CancelledSavesPartial(t *testing.T) {
	cfg := testConfig(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	base := topicModel()
	fake := &fakeCompleter{respond: func(n int, req models.CompletionRequest) (string, error) {
		out, err := base.respond(n, req)
		if strings.HasPrefix(out, "answer:") {
			cancel()
		}
		return out, err
	}}
	g, _ := newTestGenerator(cfg, fake, nil)

	summary, err := g.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Interrupted)
	assert.True(t, summary.Saved)
	assert.Equal(t, 1, summary.Records)

	records, err := dataset.Load(summary.Path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

type failingWriter struct{}

func (failingWriter) Write([]models.Record) error { return errors.New("disk full") }

func TestRun_SaveFailure(t *testing.T) {
	cfg := testConfig(t, 1)
	g, out := newTestGenerator(cfg, topicModel(), nil)
	g.Writer = failingWriter{}

	summary, err := g.Run(context.Background())
	require.Error(t, err)
	assert.EqualError(t, err, "disk full")
	assert.False(t, summary.Saved)
	assert.Contains(t, out.String(), "Error saving dataset")
}
