package selecttemplate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "gov-decisions-workers/internal/common/errors"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/metrics"
	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/params"
	"gov-decisions-workers/internal/engine/selector"
	"gov-decisions-workers/internal/models"
)

const (
	TaskType = "select-template"
)

var (
	ErrInvalidInput     = errors.New("INVALID_INPUT")
	ErrTemplateNotFound = errors.New("TEMPLATE_NOT_FOUND")
	ErrMissingParameter = errors.New("MISSING_PARAMETER")
)

type Handler struct {
	config       *Config
	normalizer   *normalizer.Normalizer
	selector     *selector.Selector
	builder      *params.Builder
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, cat *catalog.Catalog, n *normalizer.Normalizer, builder *params.Builder, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		normalizer:   n,
		selector:     selector.New(cat, config.DefaultGovernment),
		builder:      builder,
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

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, started, apperrors.NewRequestValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			h.fail(client, job, started, apperrors.NewTemplateNotFoundError(input.Intent))
			return
		}
		h.fail(client, job, started, apperrors.NewRequestValidationError(err.Error()))
		return
	}

	metrics.ObserveJob(TaskType, started, "")
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	intent, err := models.ParseIntent(input.Intent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ents, _ := h.normalizer.Normalize(input.Entities)

	tpl, ok := h.selector.Select(intent, &ents, input.Text)
	if !ok {
		h.logger.Info("no template for request", map[string]interface{}{
			"intent": intent.String(),
		})
		return nil, fmt.Errorf("%w: intent %s", ErrTemplateNotFound, intent)
	}

	values, err := h.builder.Build(tpl, ents)
	if err != nil {
		if errors.Is(err, params.ErrMissingParam) {
			return nil, fmt.Errorf("%w: %v", ErrMissingParameter, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	sql := tpl.Render(values)

	h.logger.Info("template selected", map[string]interface{}{
		"intent":       intent.String(),
		"templateName": tpl.Name,
	})

	return &Output{
		TemplateName: tpl.Name,
		QueryType:    tpl.QueryType,
		SQL:          sql,
		Parameters:   params.Typed(sql, values),
		Entities:     ents,
	}, nil
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
