package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"gov-decisions-workers/internal/common/config"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/metrics"
)

// JobHandler processes one activated job and completes or fails it itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// JobObserver records job outcomes. *observability.Observability satisfies it.
type JobObserver interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. A panicking handler fails the
// job instead of taking the process down.
func NewWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, obs JobObserver, log logger.Logger) *CamundaWorker {
	l := log.WithFields(map[string]interface{}{"taskType": taskType})

	builder := client.NewJobWorker().
		JobType(taskType).
		Handler(Wrap(taskType, handler, obs, l)).
		MaxJobsActive(wcfg.MaxJobsActive)
	if wcfg.Timeout > 0 {
		builder = builder.Timeout(config.GetDuration(wcfg.Timeout))
	}

	w := &CamundaWorker{
		worker:   builder.Open(),
		logger:   l,
		taskType: taskType,
	}
	l.Info("worker started", map[string]interface{}{"maxJobsActive": wcfg.MaxJobsActive})
	return w
}

// Wrap adapts handler to the Zeebe handler signature, tracking active jobs
// and recovering panics. obs may be nil.
func Wrap(taskType string, handler JobHandler, obs JobObserver, log logger.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		active := metrics.WorkerJobsActive.WithLabelValues(taskType)
		active.Inc()
		defer active.Dec()

		started := time.Now()
		status := "handled"
		if obs != nil {
			defer func() {
				obs.RecordJobProcessed(context.Background(), taskType, status)
				obs.RecordJobDuration(context.Background(), taskType, time.Since(started), status)
			}()
		}

		defer func() {
			if r := recover(); r != nil {
				status = "panic"
				log.Error("handler panicked", map[string]interface{}{
					"jobKey": job.Key,
					"panic":  fmt.Sprint(r),
				})
				metrics.WorkerJobsFailed.WithLabelValues(taskType, "PANIC").Inc()
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_, _ = client.NewFailJobCommand().
					JobKey(job.Key).
					Retries(job.Retries - 1).
					ErrorMessage(fmt.Sprintf("handler panicked: %v", r)).
					Send(ctx)
			}
		}()

		handler.Handle(client, job)
	}
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
