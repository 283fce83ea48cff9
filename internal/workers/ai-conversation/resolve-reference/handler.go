package resolvereference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "gov-decisions-workers/internal/common/errors"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/metrics"
	"gov-decisions-workers/internal/engine/pipeline"
	"gov-decisions-workers/internal/engine/resolver"
	"gov-decisions-workers/internal/models"
)

const (
	TaskType = "resolve-reference"
)

var (
	ErrInvalidInput       = errors.New("INVALID_INPUT")
	ErrResolutionFailed   = errors.New("RESOLUTION_FAILED")
	ErrHistoryUnavailable = errors.New("HISTORY_UNAVAILABLE")
)

type Handler struct {
	config       *Config
	engine       *pipeline.Engine
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, engine *pipeline.Engine, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
		logger:       l,
		errorHandler: apperrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := pipeline.Decode([]byte(job.Variables))
	if err != nil {
		h.fail(client, job, started, apperrors.NewRequestValidationError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(client, job, started, toStandardError(err))
		return
	}

	metrics.ObserveJob(TaskType, started, "")
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrInvalidInput)
	}

	res, rep, err := h.engine.Resolve(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fields := map[string]interface{}{
		"conversationId": input.ConversationID,
		"route":          string(res.Route),
		"historySlots":   res.HistorySlots,
	}
	if res.Route == models.RouteError {
		h.logger.Warn("resolution degraded", fields)
		if h.config.FailOnError {
			if resolver.IsHistoryFault(res) {
				return nil, fmt.Errorf("%w: %s", ErrHistoryUnavailable, res.Reasoning)
			}
			return nil, fmt.Errorf("%w: %s", ErrResolutionFailed, res.Reasoning)
		}
	} else {
		h.logger.Info("reference resolved", fields)
	}

	return &Output{
		ResolutionResult:    res,
		SynonymExpansions:   nonNil(rep.SynonymExpansions),
		DateInterpretations: nonNil(rep.DateInterpretations),
	}, nil
}

func toStandardError(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrHistoryUnavailable):
		return apperrors.NewHistoryUnavailableError(err)
	case errors.Is(err, ErrResolutionFailed):
		return apperrors.NewResolutionFailedError(err.Error())
	default:
		return apperrors.NewRequestValidationError(err.Error())
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, started time.Time, stdErr *apperrors.StandardError) {
	metrics.ObserveJob(TaskType, started, string(stdErr.Code))
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
