// internal/workers/matching/generate-matches/handler.go
package generatematches

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"match-workers/internal/common/cache"
	apperrors "match-workers/internal/common/errors"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
	"match-workers/internal/common/observability"
	"match-workers/internal/common/validation"
	"match-workers/internal/matching/selector"
	"match-workers/internal/models"
	"match-workers/internal/store"
	"match-workers/pkg/registry"
)

const (
	TaskType = "generate-matches"
)

type ParticipantSource interface {
	LoadParticipant(ctx context.Context, userID string) (*models.Participant, error)
	ListParticipants(ctx context.Context, excludeUserID string, limit int) ([]models.Participant, error)
}

type CandidateDirectory interface {
	Candidates(ctx context.Context, user models.Participant, size int) ([]models.Participant, error)
}

type MatchRepository interface {
	ListCurrent(ctx context.Context, userID string) ([]models.Match, error)
	ListHistory(ctx context.Context, userID string, since time.Time) ([]models.Match, error)
	ReplaceForUser(ctx context.Context, userID string, matches []models.Match, now time.Time) error
}

// Dependencies wires the handler. Directory, Cache and Observability are
// optional.
type Dependencies struct {
	Participants  ParticipantSource
	Directory     CandidateDirectory
	Matches       MatchRepository
	Cache         *cache.Cache
	Selector      *selector.Selector
	Observability *observability.Observability
	Clock         func() time.Time
}

type Handler struct {
	config    *Config
	deps      Dependencies
	validator *validation.Validator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) (*Handler, error) {
	if deps.Participants == nil || deps.Matches == nil || deps.Selector == nil {
		return nil, fmt.Errorf("%s: participants, matches and selector are required", TaskType)
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
	if input == nil || input.UserID == "" {
		return nil, apperrors.NewInvalidInputError("userId is required", nil)
	}

	out, err := h.resolve(ctx, input)
	if err != nil {
		return nil, err
	}
	h.deps.Observability.RecordMatchesReturned(ctx, out.Source, len(out.Matches))
	return out, nil
}

func (h *Handler) resolve(ctx context.Context, input *Input) (*Output, error) {
	if !input.Refresh {
		if out, ok := h.fromCache(ctx, input.UserID); ok {
			return out, nil
		}
		out, err := h.fromStore(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}

	return h.generate(ctx, input)
}

func (h *Handler) fromCache(ctx context.Context, userID string) (*Output, bool) {
	if h.deps.Cache == nil {
		return nil, false
	}
	var cached cachedMatches
	ok, err := h.deps.Cache.Get(ctx, cache.MatchesKey(userID), &cached)
	if err != nil {
		h.logger.Warn("match cache read failed", map[string]interface{}{"userId": userID, "error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &Output{
		UserID:      userID,
		Matches:     nonNil(cached.Matches),
		Metrics:     cached.Metrics,
		Considered:  cached.Considered,
		GeneratedAt: cached.GeneratedAt,
		FromCache:   true,
		Source:      SourceCache,
	}, true
}

// fromStore serves the persisted current set. It returns nil when the user
// has none yet.
func (h *Handler) fromStore(ctx context.Context, userID string) (*Output, error) {
	current, err := h.deps.Matches.ListCurrent(ctx, userID)
	if err != nil {
		return nil, apperrors.NewQueryError("list_current_matches", err)
	}
	if len(current) == 0 {
		return nil, nil
	}

	generatedAt := current[0].GeneratedAt
	for _, m := range current[1:] {
		if m.GeneratedAt.After(generatedAt) {
			generatedAt = m.GeneratedAt
		}
	}
	out := &Output{
		UserID:      userID,
		Matches:     current,
		Metrics:     selector.Quality(current),
		Considered:  len(current),
		GeneratedAt: generatedAt,
		Source:      SourceStored,
	}
	h.store(ctx, out)
	return out, nil
}

func (h *Handler) generate(ctx context.Context, input *Input) (*Output, error) {
	user, err := h.deps.Participants.LoadParticipant(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewProfileNotFoundError(input.UserID)
		}
		return nil, apperrors.NewQueryError("load_participant", err)
	}

	pool, poolSource, err := h.candidates(ctx, *user)
	if err != nil {
		return nil, err
	}

	now := h.deps.Clock().UTC()
	since := now.AddDate(0, 0, -(h.config.RecencyWindowDays + 1))
	history, err := h.deps.Matches.ListHistory(ctx, input.UserID, since)
	if err != nil {
		return nil, apperrors.NewQueryError("list_match_history", err)
	}
	recent := selector.RecentExclusions(history, now, h.config.RecencyWindowDays)

	opts := h.options(input).WithExclusions(recent...)
	result := h.deps.Selector.Select(*user, pool, opts)

	if err := h.deps.Matches.ReplaceForUser(ctx, input.UserID, result.Matches, now); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	h.record(result)
	h.logger.Info("matches generated", map[string]interface{}{
		"userId":          input.UserID,
		"candidates":      len(pool),
		"considered":      result.Considered,
		"recentExcluded":  len(recent),
		"matches":         len(result.Matches),
		"averageScore":    result.Metrics.AverageScore,
		"candidateSource": poolSource,
	})

	out := &Output{
		UserID:          input.UserID,
		Matches:         nonNil(result.Matches),
		Metrics:         result.Metrics,
		Considered:      result.Considered,
		GeneratedAt:     now,
		Source:          SourceGenerated,
		CandidateSource: poolSource,
	}
	h.store(ctx, out)
	if h.deps.Cache != nil {
		if err := h.deps.Cache.Delete(ctx, cache.NetworkGraphKey(input.UserID)); err != nil {
			h.logger.Warn("network graph invalidation failed", map[string]interface{}{"userId": input.UserID, "error": err.Error()})
		}
	}
	return out, nil
}

// candidates prefers the directory and falls back to Postgres when it is
// absent or failing.
func (h *Handler) candidates(ctx context.Context, user models.Participant) ([]models.Participant, string, error) {
	if h.deps.Directory != nil {
		pool, err := h.deps.Directory.Candidates(ctx, user, h.config.CandidatePoolSize)
		if err == nil {
			return pool, "directory", nil
		}
		h.logger.Warn("directory search failed, using database", map[string]interface{}{
			"userId": user.UserID,
			"error":  err.Error(),
		})
	}

	pool, err := h.deps.Participants.ListParticipants(ctx, user.UserID, h.config.CandidatePoolSize)
	if err != nil {
		return nil, "", apperrors.NewQueryError("list_participants", err)
	}
	return pool, "database", nil
}

func (h *Handler) options(input *Input) selector.Options {
	opts := h.config.Selection
	if input.MaxHighAffinity != nil {
		opts.MaxHighAffinity = *input.MaxHighAffinity
	}
	if input.MaxStrategic != nil {
		opts.MaxStrategic = *input.MaxStrategic
	}
	if input.MinScore != nil {
		opts.MinScore = *input.MinScore
	}
	return opts.WithExclusions(input.ExcludeIDs...)
}

func (h *Handler) store(ctx context.Context, out *Output) {
	if h.deps.Cache == nil {
		return
	}
	value := cachedMatches{
		Matches:     out.Matches,
		Metrics:     out.Metrics,
		Considered:  out.Considered,
		GeneratedAt: out.GeneratedAt,
	}
	if err := h.deps.Cache.Set(ctx, cache.MatchesKey(out.UserID), value, h.deps.Cache.TTLs().Matches); err != nil {
		h.logger.Warn("match cache write failed", map[string]interface{}{"userId": out.UserID, "error": err.Error()})
	}
}

func (h *Handler) record(result selector.Result) {
	metrics.MatchCandidatesScored.Observe(float64(result.Considered))
	if len(result.Matches) > 0 {
		metrics.MatchAverageScore.Observe(result.Metrics.AverageScore)
	}
	for _, m := range result.Matches {
		metrics.MatchesGenerated.WithLabelValues(string(m.Type)).Inc()
	}
}

func nonNil(ms []models.Match) []models.Match {
	if ms == nil {
		return []models.Match{}
	}
	return ms
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
