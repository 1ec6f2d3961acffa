package ingesting

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/wavecrate/wavecrate/src/features/jobs"
	"github.com/wavecrate/wavecrate/src/features/metrics"
)

// BatchIngestTask implements jobs.Task for batch ingestion. Items run on a
// bounded worker pool; cancellation stops feeding the pool and lets
// in-flight items finish or roll back cleanly.
type BatchIngestTask struct {
	service *Service
}

// NewBatchIngestTask creates a new BatchIngestTask.
func NewBatchIngestTask(service *Service) *BatchIngestTask {
	return &BatchIngestTask{service: service}
}

// MetadataKeys returns the required metadata keys for a batch ingest job.
func (t *BatchIngestTask) MetadataKeys() []string {
	return []string{"paths"}
}

// Execute runs the batch.
func (t *BatchIngestTask) Execute(ctx context.Context, job *jobs.Job, progressUpdater func(int, string)) (map[string]any, error) {
	paths := pathList(job.Metadata["paths"])
	if len(paths) == 0 {
		return nil, fmt.Errorf("batch has no paths")
	}

	workers := atLeastOne(t.service.config.Get().Ingest.MaxParallelFiles)
	if workers > len(paths) {
		workers = len(paths)
	}
	job.Logger.Info("Starting batch", "files", len(paths), "workers", workers)

	stats := BatchStats{Total: len(paths)}
	var mu sync.Mutex
	processed := 0

	record := func(report ItemReport) {
		mu.Lock()
		defer mu.Unlock()
		stats.Reports = append(stats.Reports, report)
		switch report.Status {
		case ItemCompleted:
			stats.Completed++
		case ItemPartial:
			stats.Partial++
		default:
			stats.Failed++
		}
		metrics.ItemsProcessed.WithLabelValues(string(report.Status)).Inc()
		processed++
		progressUpdater(processed*100/len(paths), fmt.Sprintf("Processed %d/%d", processed, len(paths)))
	}

	work := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				record(t.service.ingestFile(ctx, path, job.Logger))
			}
		}()
	}

feed:
	for _, path := range paths {
		select {
		case work <- path:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	result := map[string]any{"stats": stats, "msg": "Batch finished: " + stats.String()}
	if ctx.Err() != nil {
		job.Logger.Info("Batch cancelled", "stats", stats.String())
		return result, ctx.Err()
	}

	job.Logger.Info("Batch finished", "stats", stats.String())
	switch {
	case stats.Failed == stats.Total:
		return result, fmt.Errorf("no items were ingested: %s", stats)
	case stats.Failed > 0 || stats.Partial > 0:
		return result, fmt.Errorf("%w: %s", jobs.ErrPartial, stats)
	default:
		return result, nil
	}
}

// Cleanup removes the upload directory of batches whose source files the
// server saved itself. Directory and watch-folder batches carry no
// owned_dir and leave user files in place.
func (t *BatchIngestTask) Cleanup(job *jobs.Job) error {
	dir, _ := job.Metadata["owned_dir"].(string)
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

// pathList accepts both a []string handed over in-process and the []any
// shape metadata takes after a JSON round trip.
func pathList(v any) []string {
	switch paths := v.(type) {
	case []string:
		return paths
	case []any:
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			if s, ok := p.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
