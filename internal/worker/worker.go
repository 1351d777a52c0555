package worker

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dailydream/studio/internal/db"
	"github.com/dailydream/studio/internal/pipeline"
	"github.com/dailydream/studio/internal/queue"
)

const dequeueTimeout = 5 * time.Second

// Worker drains the combine queue and runs each job through the pipeline.
// The database is optional; without it jobs still run, they just leave no
// history.
type Worker struct {
	db       *db.DB
	queue    *queue.Queue
	pipeline *pipeline.Pipeline
}

func New(database *db.DB, q *queue.Queue, p *pipeline.Pipeline) *Worker {
	return &Worker{
		db:       database,
		queue:    q,
		pipeline: p,
	}
}

// Start runs `concurrency` consumers until the context is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.consume(gctx)
			return nil
		})
	}
	g.Wait()

	log.Println("Worker shut down")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.DequeueCombine(ctx, dequeueTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error dequeuing combine job: %v", err)
				continue
			}
			if job == nil {
				continue
			}

			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *pipeline.CombineJob) {
	log.Printf("Processing combine job %s (%d clips)", job.ID, len(job.Request.Videos))

	resp, outcome, err := w.pipeline.Run(ctx, *job)
	if err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
		if dbErr := w.db.UpdateJobError(ctx, job.ID, err.Error()); dbErr != nil {
			log.Printf("Failed to record job error: %v", dbErr)
		}
		return
	}

	for _, d := range outcome.Degradations() {
		log.Printf("Job %s degraded at %s: %v", job.ID, d.Stage, d.Err)
	}

	if dbErr := w.db.CompleteJob(ctx, job.ID, resp.Filename, resp.VideosProcessed); dbErr != nil {
		log.Printf("Failed to record job completion: %v", dbErr)
	}

	log.Printf("Job %s completed successfully (%s)", job.ID, resp.Filename)
}
