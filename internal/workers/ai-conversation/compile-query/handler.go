package compilequery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "gov-decisions-workers/internal/common/errors"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/metrics"
	"gov-decisions-workers/internal/engine/generation"
	"gov-decisions-workers/internal/engine/orchestrator"
	"gov-decisions-workers/internal/engine/pipeline"
	"gov-decisions-workers/internal/models"
)

const (
	TaskType = "compile-query"
)

var (
	ErrInvalidInput      = errors.New("INVALID_INPUT")
	ErrCompilationFailed = errors.New("COMPILATION_FAILED")
	ErrInvalidQuery      = errors.New("INVALID_QUERY")
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
		h.fail(client, job, started, h.toStandardError(err, output))
		return
	}

	metrics.ObserveJob(TaskType, started, "")
	h.completeJob(client, job, output)
}

func (h *Handler) toStandardError(err error, output *Output) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	switch {
	case errors.Is(err, generation.ErrGenerationTimeout):
		stdErr = apperrors.NewGenerationTimeoutError()
	case errors.Is(err, generation.ErrGenerationFailed), errors.Is(err, generation.ErrMalformedResponse):
		stdErr = apperrors.NewGenerationFailedError(err)
	case errors.Is(err, ErrCompilationFailed):
		stdErr = apperrors.NewCompilationFailedError(err.Error())
	case errors.Is(err, ErrInvalidQuery):
		stdErr = apperrors.NewQueryValidationFailedError(err.Error())
	default:
		stdErr = apperrors.NewRequestValidationError(err.Error())
	}
	if output != nil && output.AssembledQuery != nil {
		stdErr.WithMetadata("method", string(output.Method)).
			WithMetadata("validationWarnings", output.Warnings)
	}
	return stdErr
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrInvalidInput)
	}

	output, err := h.engine.Compile(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if output.NeedsClarification {
		h.logger.Info("clarification required", map[string]interface{}{
			"conversationId": input.ConversationID,
		})
		return output, nil
	}

	q := output.AssembledQuery
	fields := map[string]interface{}{
		"conversationId": input.ConversationID,
		"method":         string(q.Method),
		"templateUsed":   q.TemplateName,
		"queryType":      string(q.QueryType),
		"confidence":     q.Confidence,
		"valid":          q.Valid,
	}

	if f, ok := output.Outcome.(orchestrator.Failure); ok {
		h.logger.Warn("compilation failed", fields)
		if h.config.FailOnInvalid {
			if f.Cause != nil {
				return output, fmt.Errorf("%w: %s: %w", ErrCompilationFailed, f.Reason, f.Cause)
			}
			return output, fmt.Errorf("%w: %s", ErrCompilationFailed, f.Reason)
		}
		return output, nil
	}
	if !q.Valid {
		h.logger.Warn("compiled query did not validate", fields)
		if h.config.FailOnInvalid {
			return output, fmt.Errorf("%w: %s", ErrInvalidQuery, strings.Join(q.Warnings, "; "))
		}
		return output, nil
	}

	if q.Method == models.MethodAssisted {
		h.logger.Info("query compiled by assisted generation", fields)
	} else {
		h.logger.Info("query compiled", fields)
	}
	return output, nil
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
