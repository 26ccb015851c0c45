package features

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Veraticus/cardwise/internal/model"
)

// Input is one unit of extraction work.
type Input struct {
	Signal       TimelinessSignal
	CustomerID   string
	Transactions []model.Transaction
}

// ProgressFunc is called after each customer is extracted.
type ProgressFunc func(done, total int)

type indexedVector struct {
	vector FeatureVector
	index  int
}

// ExtractAll extracts vectors for every input using a pool of workers. The
// result is index-aligned with inputs.
func ExtractAll(ctx context.Context, inputs []Input, cfg Config, workers int, progress ProgressFunc) ([]FeatureVector, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	vectors := make([]FeatureVector, len(inputs))
	if len(inputs) == 0 {
		return vectors, nil
	}

	workChan := make(chan int, len(inputs))
	for i := range inputs {
		workChan <- i
	}
	close(workChan)

	resultsChan := make(chan indexedVector, len(inputs))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(workerID int) {
			defer wg.Done()
			extractWorker(ctx, workerID, inputs, cfg, workChan, resultsChan)
		}(w)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	done := 0
	for result := range resultsChan {
		vectors[result.index] = result.vector
		done++
		if progress != nil {
			progress(done, len(inputs))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func extractWorker(
	ctx context.Context,
	workerID int,
	inputs []Input,
	cfg Config,
	workChan <-chan int,
	resultsChan chan<- indexedVector,
) {
	processed := 0
	for idx := range workChan {
		select {
		case <-ctx.Done():
			return
		default:
		}

		in := inputs[idx]
		resultsChan <- indexedVector{
			index:  idx,
			vector: Extract(in.Transactions, in.Signal, cfg),
		}
		processed++
	}
	slog.Debug("feature worker finished", "worker_id", workerID, "customers", processed)
}
