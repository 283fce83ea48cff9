package querydecisions

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"gov-decisions-workers/internal/common/database"
	apperrors "gov-decisions-workers/internal/common/errors"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/metrics"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/engine/validator"
	"gov-decisions-workers/internal/models"
	"gov-decisions-workers/internal/workers/data-access/query-decisions/queries"
)

const (
	TaskType = "query-decisions"
)

var (
	ErrInvalidInput         = errors.New("INVALID_INPUT")
	ErrQueryRefused         = errors.New("QUERY_REFUSED")
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
	ErrDatabaseUnavailable  = errors.New("DATABASE_UNAVAILABLE")
)

type Handler struct {
	config       *Config
	db           *database.PostgresClient
	cache        *ResultCache
	normalizer   *normalizer.Normalizer
	validator    *validator.Validator
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewHandler builds the worker. cache may be nil.
func NewHandler(config *Config, db *database.PostgresClient, cache *ResultCache, n *normalizer.Normalizer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		cache:        cache,
		normalizer:   n,
		validator:    validator.New(),
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
		h.fail(client, job, started, h.toStandardError(err, &input))
		return
	}

	metrics.ObserveJob(TaskType, started, "")
	h.completeJob(client, job, output)
}

func (h *Handler) toStandardError(err error, input *Input) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrQueryTimeout):
		return apperrors.NewQueryTimeoutError(input.TemplateName)
	case errors.Is(err, ErrDatabaseUnavailable):
		return apperrors.NewDatabaseConnectionFailedError(err)
	case errors.Is(err, ErrQueryRefused):
		return apperrors.NewQueryValidationFailedError(err.Error())
	case errors.Is(err, ErrQueryExecutionFailed):
		return apperrors.NewQueryExecutionFailedError(input.TemplateName, err)
	default:
		return apperrors.NewRequestValidationError(err.Error())
	}
}

func connectionLost(err error) bool {
	var netErr net.Error
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrInvalidInput)
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := h.admit(input); err != nil {
		h.logger.Warn("query refused", map[string]interface{}{
			"method":       string(input.Method),
			"templateName": input.TemplateName,
			"reason":       err.Error(),
		})
		return nil, err
	}

	bound, args, err := queries.Bind(input.SQL, input.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := cacheKey(bound, args)
	if cached, err := h.cache.Get(ctx, key); err != nil {
		h.logger.Warn("result cache read failed", map[string]interface{}{"error": err.Error()})
	} else if cached != nil {
		metrics.ResultCacheLookups.WithLabelValues(TaskType, "hit").Inc()
		cached.Cached = true
		return cached, nil
	} else if h.cache != nil {
		metrics.ResultCacheLookups.WithLabelValues(TaskType, "miss").Inc()
	}

	rows, truncated, execTime, err := queries.Execute(ctx, h.db, bound, args, h.config.MaxRows)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrQueryTimeout, err)
		}
		if connectionLost(err) {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	output := &Output{
		Data:               rows,
		RowCount:           len(rows),
		Truncated:          truncated,
		QueryExecutionTime: execTime,
		TemplateName:       input.TemplateName,
	}
	if err := h.cache.Set(ctx, key, output); err != nil {
		h.logger.Warn("result cache write failed", map[string]interface{}{"error": err.Error()})
	}

	h.logger.Info("query executed", map[string]interface{}{
		"templateName": input.TemplateName,
		"rowCount":     output.RowCount,
		"truncated":    truncated,
		"durationMs":   execTime,
	})
	return output, nil
}

// admit refuses failure results and queries that do not pass validation
// again. The query is revalidated because process variables can be edited
// between compilation and execution.
func (h *Handler) admit(input *Input) error {
	if input.Method == models.MethodFailure {
		return fmt.Errorf("%w: compilation failed", ErrQueryRefused)
	}
	if !input.Valid {
		return fmt.Errorf("%w: query was not validated", ErrQueryRefused)
	}
	ents := h.entities(input)
	if outcome := h.validator.Validate(input.SQL, ents, input.QueryType); !outcome.Valid {
		return fmt.Errorf("%w: %s", ErrQueryRefused, outcome.Reason)
	}
	return nil
}

// entities merges the request entities with the identifiers bound as
// parameters.
func (h *Handler) entities(input *Input) models.EntitySet {
	var ents models.EntitySet
	if len(input.Entities) > 0 && h.normalizer != nil {
		ents, _ = h.normalizer.Normalize(input.Entities)
	}
	for _, p := range input.Parameters {
		n, err := queries.Int(p.Value)
		if err != nil {
			continue
		}
		switch p.Name {
		case "decision_number":
			if ents.DecisionNumber == 0 {
				ents.DecisionNumber = n
			}
		case "government_number":
			if ents.GovernmentNumber == 0 {
				ents.GovernmentNumber = n
			}
		}
	}
	return ents
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
