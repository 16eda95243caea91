// internal/workers/matching/update-match-status/handler.go
package updatematchstatus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"match-workers/internal/common/cache"
	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
	"match-workers/internal/common/validation"
	"match-workers/internal/models"
	"match-workers/internal/store"
	"match-workers/pkg/registry"
)

const (
	TaskType = "update-match-status"
)

type MatchUpdater interface {
	UpdateStatus(ctx context.Context, userID, matchID string, viewed, passed sql.NullBool) (*models.Match, error)
}

type Handler struct {
	config    *Config
	matches   MatchUpdater
	cache     *cache.Cache
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

// NewHandler builds the handler. c may be nil.
func NewHandler(config *Config, matches MatchUpdater, c *cache.Cache, log logger.Logger) (*Handler, error) {
	if matches == nil {
		return nil, fmt.Errorf("%s: match store is required", TaskType)
	}
	v, err := validation.NewValidator(registry.InputSchemaFor(TaskType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TaskType, err)
	}

	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		matches:   matches,
		cache:     c,
		validator: v,
		errors:    apperrors.NewErrorHandler(scoped),
		logger:    scoped,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	res, err := h.validator.ValidateJSON(variables)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("job variables are not valid JSON", err)
	}
	if !res.Valid {
		return nil, apperrors.NewInvalidInputError(res.Summary(), nil).
			WithMetadata("validationErrors", res.MarshalErrors())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err), err)
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.UserID == "" || input.MatchID == "" {
		return nil, apperrors.NewInvalidInputError("userId and matchId are required", nil)
	}
	if input.Viewed == nil && input.Passed == nil {
		return nil, apperrors.NewInvalidInputError("one of viewed or passed is required", nil)
	}

	match, err := h.matches.UpdateStatus(ctx, input.UserID, input.MatchID, nullBool(input.Viewed), nullBool(input.Passed))
	if err != nil {
		if errors.Is(err, store.ErrMatchNotFound) {
			return nil, apperrors.NewMatchNotFoundError(input.MatchID)
		}
		return nil, apperrors.NewQueryError("update_match_status", err)
	}

	out := &Output{Match: *match}
	if h.cache != nil {
		if err := h.cache.InvalidateUserCache(ctx, input.UserID); err != nil {
			h.logger.Warn("cache invalidation failed", map[string]interface{}{
				"userId": input.UserID,
				"error":  err.Error(),
			})
		} else {
			out.CacheInvalidated = true
		}
	}

	h.logger.Info("match status updated", map[string]interface{}{
		"userId":  input.UserID,
		"matchId": input.MatchID,
		"viewed":  match.Viewed,
		"passed":  match.Passed,
	})
	return out, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
