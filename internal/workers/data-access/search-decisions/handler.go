package searchdecisions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/patrickmn/go-cache"

	"gov-decisions-workers/internal/common/database"
	apperrors "gov-decisions-workers/internal/common/errors"
	"gov-decisions-workers/internal/common/logger"
	"gov-decisions-workers/internal/common/metrics"
	"gov-decisions-workers/internal/engine/normalizer"
	"gov-decisions-workers/internal/models"
	"gov-decisions-workers/internal/workers/data-access/search-decisions/queries"
)

const (
	TaskType = "search-decisions"
)

var (
	ErrInvalidInput      = errors.New("INVALID_INPUT")
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
	ErrIndexNotFound     = errors.New("INDEX_NOT_FOUND")
)

type Handler struct {
	config       *Config
	es           *database.ElasticsearchClient
	normalizer   *normalizer.Normalizer
	cache        *cache.Cache
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, es *database.ElasticsearchClient, n *normalizer.Normalizer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	h := &Handler{
		config:       config,
		es:           es,
		normalizer:   n,
		logger:       l,
		errorHandler: apperrors.NewErrorHandler(l),
	}
	if config.CacheTTL > 0 {
		h.cache = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}
	return h
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
		h.fail(client, job, started, h.toStandardError(err))
		return
	}

	metrics.ObserveJob(TaskType, started, "")
	h.completeJob(client, job, output)
}

func (h *Handler) toStandardError(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrIndexNotFound):
		return apperrors.NewIndexNotFoundError(h.es.Index)
	case errors.Is(err, ErrSearchTimeout):
		return apperrors.NewSearchTimeoutError()
	case errors.Is(err, ErrSearchQueryFailed):
		return apperrors.NewSearchQueryFailedError(err)
	default:
		return apperrors.NewRequestValidationError(err.Error())
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input cannot be nil", ErrInvalidInput)
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !input.HasCriteria() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, queries.ErrEmptyQuery)
	}

	search := h.buildSearch(input)
	key, _ := json.Marshal(search)
	if h.cache != nil {
		if cached, ok := h.cache.Get(string(key)); ok {
			metrics.ResultCacheLookups.WithLabelValues(TaskType, "hit").Inc()
			out := *cached.(*Output)
			out.Cached = true
			return &out, nil
		}
		metrics.ResultCacheLookups.WithLabelValues(TaskType, "miss").Inc()
	}

	result, err := queries.Execute(ctx, h.es.Client, search)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		if errors.Is(err, queries.ErrIndexNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrIndexNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	output := &Output{
		Data:      result.Data,
		TotalHits: result.TotalHits,
		MaxScore:  result.MaxScore,
		Took:      result.Took,
	}
	if h.cache != nil {
		h.cache.SetDefault(string(key), output)
	}

	h.logger.Info("search completed", map[string]interface{}{
		"totalHits": output.TotalHits,
		"returned":  len(output.Data),
		"tookMs":    output.Took,
	})
	return output, nil
}

// buildSearch canonicalizes the free-form criteria the same way the query
// engine does, so searches and compiled queries agree on topics and
// ministries.
func (h *Handler) buildSearch(input *Input) queries.DecisionSearch {
	s := queries.DecisionSearch{
		Index:            h.es.Index,
		Text:             input.Text,
		Topic:            input.Topic,
		Ministries:       input.Ministries,
		DateRange:        input.DateRange,
		GovernmentNumber: input.GovernmentNumber,
		DecisionNumber:   input.DecisionNumber,
		From:             input.From,
		Size:             input.Size,
	}
	if h.normalizer != nil {
		s.Text = h.normalizer.CorrectTypos(s.Text)
		ents, _ := h.normalizer.Canonicalize(models.EntitySet{Topic: s.Topic, Ministries: s.Ministries})
		s.Topic = ents.Topic
		s.Ministries = ents.Ministries
	}
	if s.Size <= 0 {
		s.Size = h.config.DefaultSize
	}
	if h.config.MaxResults > 0 && s.Size > h.config.MaxResults {
		s.Size = h.config.MaxResults
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
