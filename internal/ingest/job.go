package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/manabu/pkg/utils"
)

// ErrNotConverged is returned when a job keeps finding work past its step budget.
var ErrNotConverged = errors.New("embedding job did not converge")

// Job drives a Processor over one document until every chunk has a vector.
type Job struct {
	processor  *Processor
	documentID string
	batchSize  int

	done     bool
	inserted int
	steps    int
}

// NewJob creates a job for documentID. batchSize follows the processor's defaults.
func NewJob(p *Processor, documentID string, batchSize int) *Job {
	return &Job{processor: p, documentID: documentID, batchSize: p.BatchSize(batchSize)}
}

// HasMore reports whether the last step left work behind.
func (j *Job) HasMore() bool { return !j.done }

// Inserted returns the number of vectors written so far.
func (j *Job) Inserted() int { return j.inserted }

// Next runs one batch.
func (j *Job) Next(ctx context.Context) (BatchResult, error) {
	res, err := j.processor.ProcessNextBatch(ctx, j.documentID, j.batchSize)
	if err != nil {
		return res, err
	}
	j.steps++
	j.inserted += res.Inserted
	j.done = res.Done
	return res, nil
}

// Run calls Next until the document is done. The number of calls is bounded by
// ceil(chunks/batchSize)+1, counted once the first batch has indexed the document.
func (j *Job) Run(ctx context.Context) (int, error) {
	if _, err := j.Next(ctx); err != nil || j.done {
		return j.inserted, err
	}
	total, err := j.processor.store.CountChunksByDocument(ctx, j.documentID)
	if err != nil {
		return j.inserted, err
	}
	limit := utils.CeilDiv(total, j.batchSize) + 1
	for j.HasMore() {
		if j.steps >= limit {
			return j.inserted, fmt.Errorf("%w after %d batches", ErrNotConverged, j.steps)
		}
		if err := ctx.Err(); err != nil {
			return j.inserted, err
		}
		if _, err := j.Next(ctx); err != nil {
			return j.inserted, err
		}
	}
	return j.inserted, nil
}
