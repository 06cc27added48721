package generator

import (
	"context"
	"sync"
	"time"

	"github.com/XeTute/Synthetic-Data-Generation/internal/models"
	"github.com/XeTute/Synthetic-Data-Generation/internal/retry"
)

// fakeCompleter answers requests through respond and records every request
type fakeCompleter struct {
	mu       sync.Mutex
	requests []models.CompletionRequest
	respond  func(n int, req models.CompletionRequest) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.respond(n, req)
}

func (f *fakeCompleter) Requests() []models.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CompletionRequest(nil), f.requests...)
}

// scripted returns responses in order and repeats the last one afterwards
func scripted(responses ...string) *fakeCompleter {
	return &fakeCompleter{
		respond: func(n int, req models.CompletionRequest) (string, error) {
			if n > len(responses) {
				return responses[len(responses)-1], nil
			}
			return responses[n-1], nil
		},
	}
}

func userPrompt(req models.CompletionRequest) string {
	return req.Messages[len(req.Messages)-1].Content
}

func fastRetry(attempts int) *retry.Retrier {
	return retry.New(retry.Config{MaxAttempts: attempts})
}

type progressCall struct {
	completed int
	total     int
}

type progressRecorder struct {
	mu    sync.Mutex
	calls []progressCall
}

func (p *progressRecorder) record(completed, total int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, progressCall{completed: completed, total: total})
}

func (p *progressRecorder) completed() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.completed
	}
	return out
}
