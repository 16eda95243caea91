// internal/workers/matching/embed-profiles/handler.go
package embedprofiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
	"match-workers/internal/common/validation"
	"match-workers/internal/matching/embedding"
	"match-workers/internal/models"
	"match-workers/internal/store"
	"match-workers/pkg/registry"
)

const (
	TaskType = "embed-profiles"
)

type ParticipantLoader interface {
	LoadParticipants(ctx context.Context, userIDs []string) ([]models.Participant, error)
}

type VectorWriter interface {
	Upsert(ctx context.Context, vectors []store.ProfileVector) error
}

type Dependencies struct {
	Participants ParticipantLoader
	Vectors      VectorWriter
	Embeddings   *embedding.Service
	Clock        func() time.Time
}

type Handler struct {
	config    *Config
	deps      Dependencies
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) (*Handler, error) {
	if deps.Participants == nil || deps.Vectors == nil || deps.Embeddings == nil {
		return nil, fmt.Errorf("%s: participants, vectors and embeddings are required", TaskType)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
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
	if input == nil || len(input.UserIDs) == 0 {
		return nil, apperrors.NewInvalidInputError("userIds is required", nil)
	}

	svc := h.deps.Embeddings
	provider := svc.Provider()
	if !svc.IsConfigured() {
		return nil, apperrors.NewProviderNotConfiguredError(provider.Name())
	}

	ids := dedupe(input.UserIDs)
	participants, err := h.deps.Participants.LoadParticipants(ctx, ids)
	if err != nil {
		return nil, apperrors.NewQueryError("load_participants", err)
	}

	out := &Output{
		Provider:   provider.Name(),
		Dimensions: provider.Dimensions(),
		Embedded:   []string{},
		Missing:    []string{},
		Skipped:    []string{},
	}

	found := make(map[string]models.Participant, len(participants))
	for _, p := range participants {
		found[p.UserID] = p
	}

	var (
		texts   []string
		textIDs []string
	)
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			out.Missing = append(out.Missing, id)
			continue
		}
		text := embedding.ProfileText(p.Profile)
		if strings.TrimSpace(text) == "" {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		texts = append(texts, text)
		textIDs = append(textIDs, id)
	}

	if len(texts) == 0 {
		return out, nil
	}

	vectors, err := svc.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, embeddingError(provider.Name(), err)
	}

	now := h.deps.Clock().UTC()
	rows := make([]store.ProfileVector, len(vectors))
	for i, v := range vectors {
		rows[i] = store.ProfileVector{
			UserID:    textIDs[i],
			Provider:  provider.Name(),
			Model:     h.config.Model,
			Values:    v,
			UpdatedAt: now,
		}
	}
	if err := h.deps.Vectors.Upsert(ctx, rows); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	out.Embedded = textIDs

	h.logger.Info("profiles embedded", map[string]interface{}{
		"provider": provider.Name(),
		"embedded": len(out.Embedded),
		"missing":  len(out.Missing),
		"skipped":  len(out.Skipped),
	})
	return out, nil
}

func embeddingError(provider string, err error) error {
	switch {
	case errors.Is(err, embedding.ErrNotConfigured):
		return apperrors.NewProviderNotConfiguredError(provider)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewEmbeddingTimeoutError(provider)
	default:
		return apperrors.NewEmbeddingFailedError(provider, err)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
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
