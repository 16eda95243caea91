// internal/workers/matching/find-similar-profiles/handler.go
package findsimilarprofiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
	"match-workers/internal/common/observability"
	"match-workers/internal/common/validation"
	"match-workers/internal/matching/embedding"
	"match-workers/internal/matching/scoring"
	"match-workers/internal/models"
	"match-workers/internal/store"
	"match-workers/pkg/registry"
)

const (
	TaskType = "find-similar-profiles"
)

type ParticipantSource interface {
	LoadParticipant(ctx context.Context, userID string) (*models.Participant, error)
	LoadParticipants(ctx context.Context, userIDs []string) ([]models.Participant, error)
	ListParticipants(ctx context.Context, excludeUserID string, limit int) ([]models.Participant, error)
}

type VectorReader interface {
	Get(ctx context.Context, userID string) (*store.ProfileVector, error)
	ListComparable(ctx context.Context, provider, model, excludeUserID string) ([]store.ProfileVector, error)
}

// Dependencies wires the handler. Vectors and Embeddings may be nil, in
// which case only attribute scoring is used.
type Dependencies struct {
	Participants  ParticipantSource
	Vectors       VectorReader
	Embeddings    *embedding.Service
	Scorer        *scoring.Scorer
	Observability *observability.Observability
}

type Handler struct {
	config    *Config
	deps      Dependencies
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) (*Handler, error) {
	if deps.Participants == nil || deps.Scorer == nil {
		return nil, fmt.Errorf("%s: participants and scorer are required", TaskType)
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
	if input == nil || input.UserID == "" {
		return nil, apperrors.NewInvalidInputError("userId is required", nil)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}
	minSim := h.config.MinSimilarity
	if input.MinSimilarity != nil {
		minSim = *input.MinSimilarity
	}

	user, err := h.deps.Participants.LoadParticipant(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewProfileNotFoundError(input.UserID)
		}
		return nil, apperrors.NewQueryError("load_participant", err)
	}

	out := &Output{UserID: input.UserID}
	results, ok, err := h.byEmbedding(ctx, *user, minSim, limit)
	if err != nil {
		return nil, err
	}
	if ok {
		out.Source = SourceEmbedding
		out.Results = results
	} else {
		results, err := h.byAttributes(ctx, *user, limit)
		if err != nil {
			return nil, err
		}
		out.Source = SourceAttributes
		out.Results = results
	}
	if out.Results == nil {
		out.Results = []Result{}
	}

	h.deps.Observability.RecordMatchesReturned(ctx, out.Source, len(out.Results))
	h.logger.Info("similar profiles found", map[string]interface{}{
		"userId":  input.UserID,
		"source":  out.Source,
		"results": len(out.Results),
	})
	return out, nil
}

// byEmbedding ranks stored vectors by cosine similarity. ok is false when
// the embedding path cannot answer: no provider, a failing provider, no
// query text, or no comparable vectors.
func (h *Handler) byEmbedding(ctx context.Context, user models.Participant, minSim float64, limit int) ([]Result, bool, error) {
	svc := h.deps.Embeddings
	if svc == nil || h.deps.Vectors == nil || !svc.IsConfigured() {
		return nil, false, nil
	}
	provider := svc.Provider().Name()

	query, err := h.queryVector(ctx, user, provider)
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.ErrCodeEmbeddingFailed, apperrors.ErrCodeEmbeddingTimeout:
			h.logger.Warn("embedding provider failed, using attribute scoring", map[string]interface{}{
				"userId":   user.UserID,
				"provider": provider,
				"error":    err.Error(),
			})
			return nil, false, nil
		}
		return nil, false, err
	}
	if query == nil {
		return nil, false, nil
	}

	stored, err := h.deps.Vectors.ListComparable(ctx, provider, h.config.Model, user.UserID)
	if err != nil {
		return nil, false, apperrors.NewQueryError("list_embeddings", err)
	}
	if len(stored) == 0 {
		return nil, false, nil
	}

	candidates := make([]embedding.Vector, len(stored))
	for i, v := range stored {
		candidates[i] = embedding.Vector{UserID: v.UserID, Values: v.Values}
	}
	ranked, err := embedding.RankSimilar(query, candidates, minSim, limit)
	if err != nil {
		return nil, false, apperrors.NewInvalidInputError("stored vectors do not match the query dimensions", err)
	}
	if len(ranked) == 0 {
		return nil, true, nil
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.UserID
	}
	people, err := h.deps.Participants.LoadParticipants(ctx, ids)
	if err != nil {
		return nil, false, apperrors.NewQueryError("load_participants", err)
	}
	byID := make(map[string]models.Participant, len(people))
	for _, p := range people {
		byID[p.UserID] = p
	}

	userIndustry := industryOf(user)
	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		p, ok := byID[r.UserID]
		if !ok {
			continue
		}
		other := industryOf(p)
		same := userIndustry != "" && strings.EqualFold(userIndustry, other)
		results = append(results, Result{
			UserID:     r.UserID,
			Similarity: r.Similarity,
			Type:       embedding.ClassifyBySimilarity(r.Similarity, same),
			Profile:    p.Profile,
		})
	}
	return results, true, nil
}

// queryVector uses the stored vector when it came from the active provider
// and model, and embeds the profile text otherwise. A nil vector means the
// profile has nothing to embed.
func (h *Handler) queryVector(ctx context.Context, user models.Participant, provider string) ([]float32, error) {
	stored, err := h.deps.Vectors.Get(ctx, user.UserID)
	switch {
	case err == nil:
		if stored.Provider == provider && stored.Model == h.config.Model {
			return stored.Values, nil
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, apperrors.NewQueryError("load_embedding", err)
	}

	text := embedding.ProfileText(user.Profile)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	v, err := h.deps.Embeddings.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewEmbeddingTimeoutError(provider)
		}
		return nil, apperrors.NewEmbeddingFailedError(provider, err)
	}
	return v, nil
}

func (h *Handler) byAttributes(ctx context.Context, user models.Participant, limit int) ([]Result, error) {
	pool, err := h.deps.Participants.ListParticipants(ctx, user.UserID, h.config.CandidatePoolSize)
	if err != nil {
		return nil, apperrors.NewQueryError("list_participants", err)
	}

	results := make([]Result, 0, len(pool))
	for _, p := range pool {
		if p.UserID == user.UserID {
			continue
		}
		cand := h.deps.Scorer.Score(user.Record, p.Record)
		if cand.Total <= 0 {
			continue
		}
		results = append(results, Result{
			UserID:     p.UserID,
			Similarity: cand.Total,
			Type:       cand.Type,
			Profile:    p.Profile,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].UserID < results[j].UserID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func industryOf(p models.Participant) string {
	if v := p.Record.Get("industry").First(); v != "" {
		return v
	}
	return p.Profile.Industry
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
