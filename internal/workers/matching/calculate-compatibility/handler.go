// internal/workers/matching/calculate-compatibility/handler.go
package calculatecompatibility

import (
	"context"
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
	"match-workers/internal/matching/explain"
	"match-workers/internal/matching/scoring"
	"match-workers/internal/models"
	"match-workers/internal/store"
	"match-workers/pkg/registry"
)

const (
	TaskType = "calculate-compatibility"
)

type ParticipantLoader interface {
	LoadParticipant(ctx context.Context, userID string) (*models.Participant, error)
}

type Dependencies struct {
	Participants ParticipantLoader
	Cache        *cache.Cache
	Scorer       *scoring.Scorer
}

type Handler struct {
	config    *Config
	deps      Dependencies
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) (*Handler, error) {
	if deps.Scorer == nil {
		return nil, fmt.Errorf("%s: scorer is required", TaskType)
	}
	v, err := validation.NewValidator(registry.InputSchemaFor(TaskType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TaskType, err)
	}

	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		deps:      deps,
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
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil", nil)
	}

	a, b := input.RecordA, input.RecordB
	if a == nil || b == nil {
		if input.UserIDA == "" || input.UserIDB == "" {
			return nil, apperrors.NewInvalidInputError("either userIdA and userIdB or recordA and recordB are required", nil)
		}
		pa, err := h.participant(ctx, input.UserIDA)
		if err != nil {
			return nil, err
		}
		pb, err := h.participant(ctx, input.UserIDB)
		if err != nil {
			return nil, err
		}
		a, b = pa.Record, pb.Record
	}

	cand := h.deps.Scorer.Score(a, b)

	h.logger.Debug("compatibility calculated", map[string]interface{}{
		"userIdA":   input.UserIDA,
		"userIdB":   input.UserIDB,
		"total":     cand.Total,
		"affinity":  cand.Affinity,
		"strategic": cand.Strategic,
		"type":      string(cand.Type),
	})

	commonalities := cand.Commonalities
	if commonalities == nil {
		commonalities = []models.Commonality{}
	}
	return &Output{
		UserIDA:              input.UserIDA,
		UserIDB:              input.UserIDB,
		Score:                cand.Total,
		Affinity:             cand.Affinity,
		Strategic:            cand.Strategic,
		Type:                 cand.Type,
		Commonalities:        commonalities,
		ConversationStarters: explain.ConversationStarters(cand.Commonalities, cand.Type),
	}, nil
}

// participant loads through the profile cache when one is configured.
func (h *Handler) participant(ctx context.Context, userID string) (*models.Participant, error) {
	if h.deps.Participants == nil {
		return nil, apperrors.NewProfileNotFoundError(userID)
	}

	load := func(ctx context.Context) (models.Participant, error) {
		p, err := h.deps.Participants.LoadParticipant(ctx, userID)
		if err != nil {
			return models.Participant{}, err
		}
		return *p, nil
	}

	var (
		p   models.Participant
		err error
	)
	if h.deps.Cache != nil {
		p, err = cache.GetOrSet(ctx, h.deps.Cache, cache.ProfileKey(userID), h.deps.Cache.TTLs().Profile, load)
	} else {
		p, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewProfileNotFoundError(userID)
		}
		return nil, apperrors.NewQueryError("load_participant", err)
	}
	return &p, nil
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
