package extract

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridata/invoiceminer/internal/template"
)

// Batch is the outcome of processing a list of documents against one
// template. Results keep the input order regardless of worker count.
type Batch struct {
	RunID      string            `json:"run_id"`
	Template   template.Info     `json:"template"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []*DocumentResult `json:"results"`
	Counts     map[Status]int    `json:"counts"`
}

// Processor fans a batch of documents over one or more extraction workers.
// Each document is independent; the result slice is the only shared state
// and every worker writes a distinct index.
type Processor struct {
	extractor *Extractor
	workers   int
	log       *slog.Logger
}

// NewProcessor creates a batch processor. workers < 1 is treated as 1.
func NewProcessor(extractor *Extractor, workers int, logger *slog.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{extractor: extractor, workers: workers, log: logger}
}

// Process extracts every document in paths. Cancelling the context stops
// the batch between documents; documents already being processed finish and
// unstarted ones are dropped from the results.
func (p *Processor) Process(ctx context.Context, tpl *template.Template, paths []string) *Batch {
	batch := &Batch{
		RunID:     uuid.NewString(),
		Template:  template.Info{ID: tpl.ID, Name: tpl.Name, Type: tpl.Type, PageCount: tpl.PageCount},
		StartedAt: time.Now().UTC(),
	}

	results := make([]*DocumentResult, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.extractor.ExtractDocument(tpl, paths[idx])
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case <-ctx.Done():
			p.log.Info("batch stopped, remaining documents dropped",
				"processed", i, "total", len(paths))
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	batch.Counts = make(map[Status]int)
	for _, r := range results {
		if r == nil {
			continue
		}
		batch.Results = append(batch.Results, r)
		batch.Counts[r.Overall]++
	}
	batch.FinishedAt = time.Now().UTC()

	p.log.Info("batch finished", "run", batch.RunID,
		"documents", len(batch.Results),
		"success", batch.Counts[StatusSuccess],
		"partial", batch.Counts[StatusPartial],
		"failed", batch.Counts[StatusFailed])
	return batch
}
