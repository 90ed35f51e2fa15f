// Package evaluate runs a dataset against the MCP endpoint and scores every
// answer, producing the dataset-eval files the compare pipeline reads.
package evaluate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/signalnine/mcpbench/internal/config"
	"github.com/signalnine/mcpbench/internal/mcp"
	"github.com/signalnine/mcpbench/internal/result"
	"github.com/signalnine/mcpbench/internal/scoring"
	"github.com/signalnine/mcpbench/internal/stats"
)

// Example is one line of an examples file. Prompt is used verbatim when
// set; otherwise the dataset template is rendered with the example.
type Example struct {
	ID          string            `json:"id"`
	Prompt      string            `json:"prompt"`
	Instruction string            `json:"instruction"`
	Input       string            `json:"input"`
	Context     string            `json:"context"`
	Question    string            `json:"question"`
	References  result.References `json:"references"`
}

type Generator interface {
	Generate(ctx context.Context, req mcp.Request) (mcp.Response, error)
}

type Options struct {
	Dataset  config.Dataset
	MCP      config.MCP
	Client   Generator
	Workers  int
	Limit    int
	Progress func(done, total int)
}

// ReadExamples reads a JSON-lines examples file. Blank lines are ignored.
func ReadExamples(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening examples: %w", err)
	}
	defer f.Close()

	var out []Example
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var ex Example
		if err := json.Unmarshal([]byte(text), &ex); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if ex.ID == "" {
			ex.ID = uuid.NewString()[:8]
		}
		out = append(out, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading examples: %w", err)
	}
	return out, nil
}

// Prompter renders prompts for one dataset.
type Prompter struct {
	tmpl *template.Template
}

func NewPrompter(ds config.Dataset) (*Prompter, error) {
	if ds.Template == "" {
		return &Prompter{}, nil
	}
	tmpl, err := template.New(ds.Name).Option("missingkey=error").Parse(ds.Template)
	if err != nil {
		return nil, fmt.Errorf("parsing %s template: %w", ds.Name, err)
	}
	return &Prompter{tmpl: tmpl}, nil
}

// Prompt returns the text sent for ex. An explicit prompt wins; without a
// template the fallback is "instruction\ninput".
func (p *Prompter) Prompt(ex Example) (string, error) {
	if ex.Prompt != "" {
		return ex.Prompt, nil
	}
	if p.tmpl == nil {
		return ex.Instruction + "\n" + ex.Input, nil
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, ex); err != nil {
		return "", fmt.Errorf("rendering prompt for %s: %w", ex.ID, err)
	}
	return b.String(), nil
}

// Run evaluates examples and returns one record per scorable example, in
// input order. Examples without references are skipped. Endpoint failures
// become records with an error and no latency; they never abort the run.
func Run(ctx context.Context, examples []Example, opts Options) ([]result.EvalRecord, error) {
	prompter, err := NewPrompter(opts.Dataset)
	if err != nil {
		return nil, err
	}
	examples = withReferences(examples, opts.Dataset.Name)
	if opts.Limit > 0 && len(examples) > opts.Limit {
		examples = examples[:opts.Limit]
	}
	records := make([]result.EvalRecord, len(examples))
	errs := runPool(ctx, opts.Workers, len(examples), func(ctx context.Context, i int) error {
		rec, err := evalOne(ctx, prompter, examples[i], opts)
		if err != nil {
			return err
		}
		records[i] = rec
		return nil
	}, opts.Progress)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return records, nil
}

func withReferences(examples []Example, dataset string) []Example {
	kept := make([]Example, 0, len(examples))
	for _, ex := range examples {
		if len(ex.References) == 0 {
			slog.Debug("skipping example without references", "dataset", dataset, "id", ex.ID)
			continue
		}
		kept = append(kept, ex)
	}
	if skipped := len(examples) - len(kept); skipped > 0 {
		slog.Warn("examples without references skipped", "dataset", dataset, "skipped", skipped)
	}
	return kept
}

func evalOne(ctx context.Context, p *Prompter, ex Example, opts Options) (result.EvalRecord, error) {
	prompt, err := p.Prompt(ex)
	if err != nil {
		return result.EvalRecord{}, err
	}
	rec := result.EvalRecord{
		ID:       ex.ID,
		Question: ex.Question,
		Ref:      ex.References,
	}
	if ex.Question == "" {
		rec.Prompt = prompt
	}

	resp, err := opts.Client.Generate(ctx, mcp.RequestFor(opts.MCP, prompt))
	if err != nil {
		slog.Warn("generation failed", "dataset", opts.Dataset.Name, "id", ex.ID, "err", err)
		rec.LatencyMS = stats.None
		rec.BLEU, rec.Rouge, rec.Pass1 = stats.Some(0), stats.Some(0), stats.Some(0)
		rec.Error = err.Error()
		return rec, nil
	}

	rec.Out = strings.TrimSpace(resp.Text)
	rec.LatencyMS = stats.Some(scoring.Round(float64(resp.Latency.Microseconds())/1000, 2))
	hyp := rec.Out
	if opts.Dataset.Mode == config.ModeYesNo {
		hyp = scoring.NormalizeYesNo(rec.Out)
		rec.NormOut = hyp
	}
	s := scoring.BestOf(hyp, ex.References)
	rec.BLEU = stats.Some(scoring.Round(s.BLEU, 4))
	rec.Rouge = stats.Some(scoring.Round(s.Rouge, 4))
	rec.Pass1 = stats.Some(s.Pass1)
	return rec, nil
}
