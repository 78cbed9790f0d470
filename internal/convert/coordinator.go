package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtnitsch/mw2dict/models"
	"github.com/dtnitsch/mw2dict/pkg/container"
	"github.com/dtnitsch/mw2dict/pkg/converter"
	"github.com/dtnitsch/mw2dict/pkg/source"
	"github.com/dtnitsch/mw2dict/pkg/worker"
)

// DefaultBatchSize is the capacity of the article queue.
const DefaultBatchSize = 100

// Coordinator converts the articles of a source on a pool of workers and
// stores the results. Only the goroutine calling Run writes to the
// container.
type Coordinator struct {
	Workers     int
	BatchSize   int
	Filters     []string
	Site        models.SiteInfo
	Header      converter.HeaderStyle
	ContentType string
	Logger      *slog.Logger
	// Out receives one status line per article.
	Out     io.Writer
	Metrics *Metrics
}

// Stats summarizes a run.
type Stats struct {
	Stored  int
	Empty   int
	Failed  int
	Bytes   int64
	Elapsed time.Duration
}

// Total is the number of articles seen.
func (s Stats) Total() int {
	return s.Stored + s.Empty + s.Failed
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Coordinator) out() io.Writer {
	if c.Out == nil {
		return io.Discard
	}
	return c.Out
}

// Run reads every article of src, converts it and adds successful results
// to w. On cancellation it returns ctx.Err() and the container must not be
// finalized.
func (c *Coordinator) Run(ctx context.Context, src source.Source, w container.Writer) (Stats, error) {
	start := time.Now()
	logger := c.logger()

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	contentType := c.ContentType
	if contentType == "" {
		contentType = converter.ContentType("utf-8")
	}

	contexts := make([]*worker.Context, workers)
	for i := range contexts {
		wc, err := worker.NewContext(c.Filters, c.Site, worker.Options{
			Header: c.Header,
			Logger: logger.With("worker_id", i+1),
		})
		if err != nil {
			return Stats{}, fmt.Errorf("failed to set up worker: %w", err)
		}
		contexts[i] = wc
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	jobs := make(chan models.ConvertParams, batchSize)
	results := make(chan models.ConversionResult, batchSize)

	logger.Info("Starting conversion", "workers", workers, "batch_size", batchSize)

	g.Go(func() error {
		defer close(jobs)
		return src.Articles(gctx, func(p models.ConvertParams) error {
			select {
			case jobs <- p:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var wg sync.WaitGroup
	for _, wc := range contexts {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return c.work(gctx, wc, jobs, results)
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	var writeErr error
	for res := range results {
		if writeErr != nil {
			continue
		}
		if err := c.record(res, w, contentType, &stats); err != nil {
			writeErr = err
			cancel()
		}
	}
	runErr := g.Wait()
	stats.Elapsed = time.Since(start)

	switch {
	case writeErr != nil:
		return stats, writeErr
	case ctx.Err() != nil:
		logger.Warn("Conversion cancelled", "converted", stats.Total())
		return stats, ctx.Err()
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return stats, fmt.Errorf("failed to read articles: %w", runErr)
	case runErr != nil:
		return stats, runErr
	}

	logger.Info("Conversion finished", "stored", stats.Stored, "empty", stats.Empty, "failed", stats.Failed, "elapsed", stats.Elapsed)
	return stats, nil
}

func (c *Coordinator) work(ctx context.Context, wc *worker.Context, jobs <-chan models.ConvertParams, results chan<- models.ConversionResult) error {
	for p := range jobs {
		began := time.Now()
		res, err := wc.ConvertOne(ctx, p)
		if err != nil {
			return err
		}
		c.Metrics.observeDuration(time.Since(began))
		select {
		case results <- res:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Coordinator) record(res models.ConversionResult, w container.Writer, contentType string, stats *Stats) error {
	out := c.out()
	switch {
	case res.Failed():
		stats.Failed++
		c.Metrics.observeResult(statusFailed, 0)
		fmt.Fprintf(out, "F %s\n", res.Title)
	case len(res.HTML) == 0:
		stats.Empty++
		c.Metrics.observeResult(statusEmpty, 0)
		fmt.Fprintf(out, "E %s\n", res.Title)
	default:
		if err := w.Add(res.HTML, contentType, res.Keys()...); err != nil {
			c.logger().Error("Failed to store article", "title", res.Title, "error", err)
			return fmt.Errorf("failed to store %q: %w", res.Title, err)
		}
		stats.Stored++
		stats.Bytes += int64(len(res.HTML))
		c.Metrics.observeResult(statusStored, len(res.HTML))
		fmt.Fprintf(out, "S %s (%d)\n", res.Title, len(res.HTML))
	}
	return nil
}
