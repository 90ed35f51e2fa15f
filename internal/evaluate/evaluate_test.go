package evaluate_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/mcpbench/internal/config"
	"github.com/signalnine/mcpbench/internal/evaluate"
	"github.com/signalnine/mcpbench/internal/extract"
	"github.com/signalnine/mcpbench/internal/mcp"
	"github.com/signalnine/mcpbench/internal/result"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req mcp.Request) (mcp.Response, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	text, err := f.answer(req.Prompt)
	if err != nil {
		return mcp.Response{}, err
	}
	return mcp.Response{Text: text, Latency: 1500 * time.Microsecond}, nil
}

func writeExamples(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "examples.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestReadExamples(t *testing.T) {
	path := writeExamples(t,
		`{"id":"q1","context":"Paris is in France.","question":"Where is Paris?","references":["France","in France"]}`,
		``,
		`{"question":"Is water wet?","references":"yes"}`,
	)
	exs, err := evaluate.ReadExamples(path)
	require.NoError(t, err)
	require.Len(t, exs, 2)
	assert.Equal(t, "q1", exs[0].ID)
	assert.Len(t, exs[0].References, 2)
	assert.NotEmpty(t, exs[1].ID, "missing ids are generated")
	assert.Equal(t, result.References{"yes"}, exs[1].References)
}

func TestReadExamplesBadLine(t *testing.T) {
	path := writeExamples(t, `{"id":"ok"}`, `{broken`)
	_, err := evaluate.ReadExamples(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":2:")
}

func TestPrompter(t *testing.T) {
	p, err := evaluate.NewPrompter(config.Dataset{Name: "SQuADv2", Template: "C: {{.Context}} Q: {{.Question}}"})
	require.NoError(t, err)
	got, err := p.Prompt(evaluate.Example{Context: "ctx", Question: "why?"})
	require.NoError(t, err)
	assert.Equal(t, "C: ctx Q: why?", got)

	got, err = p.Prompt(evaluate.Example{Prompt: "verbatim"})
	require.NoError(t, err)
	assert.Equal(t, "verbatim", got)

	plain, err := evaluate.NewPrompter(config.Dataset{Name: "Alpaca"})
	require.NoError(t, err)
	got, err = plain.Prompt(evaluate.Example{Instruction: "Add", Input: "2+2"})
	require.NoError(t, err)
	assert.Equal(t, "Add\n2+2", got)

	_, err = evaluate.NewPrompter(config.Dataset{Name: "bad", Template: "{{.Nope"})
	assert.Error(t, err)
}

func TestRunText(t *testing.T) {
	gen := &fakeGenerator{answer: func(prompt string) (string, error) {
		if strings.Contains(prompt, "fail") {
			return "", errors.New("connection refused")
		}
		return "  France \n", nil
	}}
	examples := []evaluate.Example{
		{ID: "a", Question: "Where is Paris?", References: result.References{"Germany", "france"}},
		{ID: "b", Prompt: "please fail", References: result.References{"x"}},
	}
	recs, err := evaluate.Run(context.Background(), examples, evaluate.Options{
		Dataset: config.Dataset{Name: "SQuADv2", Mode: config.ModeText, Template: "Q: {{.Question}}"},
		MCP:     config.Default().MCP,
		Client:  gen,
		Workers: 2,
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	ok := recs[0]
	assert.Equal(t, "a", ok.ID)
	assert.Equal(t, "France", ok.Out)
	assert.Equal(t, 1.5, ok.LatencyMS.Or(-1))
	assert.Equal(t, 1.0, ok.Pass1.Or(-1))
	assert.Equal(t, 1.0, ok.Rouge.Or(-1))
	assert.Empty(t, ok.Error)

	failed := recs[1]
	assert.Equal(t, "b", failed.ID)
	assert.True(t, failed.LatencyMS.IsNone())
	assert.Equal(t, 0.0, failed.BLEU.Or(-1))
	assert.Equal(t, 0.0, failed.Pass1.Or(-1))
	assert.Contains(t, failed.Error, "connection refused")
}

func TestRunYesNo(t *testing.T) {
	gen := &fakeGenerator{answer: func(string) (string, error) { return "Yes, it is.", nil }}
	recs, err := evaluate.Run(context.Background(), []evaluate.Example{
		{ID: "1", Question: "q", References: result.References{"yes"}},
		{ID: "2", Question: "q", References: result.References{"no"}},
	}, evaluate.Options{
		Dataset: config.Dataset{Name: "BoolQ", Mode: config.ModeYesNo},
		Client:  gen,
	})
	require.NoError(t, err)
	assert.Equal(t, "yes", recs[0].NormOut)
	assert.Equal(t, 1.0, recs[0].Pass1.Or(-1))
	assert.Equal(t, 0.0, recs[1].Pass1.Or(-1))
}

func TestRunLimit(t *testing.T) {
	gen := &fakeGenerator{answer: func(string) (string, error) { return "x", nil }}
	exs := make([]evaluate.Example, 5)
	for i := range exs {
		exs[i].References = result.References{"x"}
	}
	recs, err := evaluate.Run(context.Background(), exs, evaluate.Options{Client: gen, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Len(t, gen.prompts, 2)
}

func TestRunSkipsExamplesWithoutReferences(t *testing.T) {
	gen := &fakeGenerator{answer: func(string) (string, error) { return "France", nil }}
	recs, err := evaluate.Run(context.Background(), []evaluate.Example{
		{ID: "a", Question: "q1", References: result.References{"France"}},
		{ID: "unanswerable", Question: "q2"},
		{ID: "c", Question: "q3", References: result.References{"France"}},
	}, evaluate.Options{Dataset: config.Dataset{Name: "SQuADv2", Template: "{{.Question}}"}, Client: gen, Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "c", recs[1].ID)
	assert.ElementsMatch(t, []string{"q1", "q3"}, gen.prompts)
}

func TestRunLatencyIgnoresFailedAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text":"yes"}`))
	}))
	defer srv.Close()

	wait := 300 * time.Millisecond
	client := &mcp.Client{URL: srv.URL, Retries: 1, Backoff: backoff.NewConstantBackOff(wait)}
	recs, err := evaluate.Run(context.Background(), []evaluate.Example{
		{ID: "1", Question: "q", References: result.References{"yes"}},
	}, evaluate.Options{Dataset: config.Dataset{Name: "BoolQ", Mode: config.ModeYesNo}, Client: client})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, recs[0].Error)
	latency, ok := recs[0].LatencyMS.Get()
	require.True(t, ok)
	assert.Less(t, latency, float64(wait.Milliseconds()))
}

func TestEvalFileFeedsExtractor(t *testing.T) {
	gen := &fakeGenerator{answer: func(p string) (string, error) {
		if p == "boom\n" {
			return "", errors.New("timeout")
		}
		return "yes", nil
	}}
	recs, err := evaluate.Run(context.Background(), []evaluate.Example{
		{ID: "1", Instruction: "ok", References: result.References{"yes"}},
		{ID: "2", Instruction: "boom", References: result.References{"yes"}},
	}, evaluate.Options{Dataset: config.Dataset{Name: "BoolQ", Mode: config.ModeYesNo}, Client: gen})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "boolq_eval.json")
	require.NoError(t, result.WriteEvalFile(path, recs))

	s := extract.SummarizeEvalFile(path)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 0.5, s.Pass1.Or(-1))
	// latency averages over the one successful call only
	assert.False(t, s.LatencyMS.IsNone())
}
