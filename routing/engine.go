// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package routing implements the routing decision engine: it analyzes a
// prompt, filters the agent pool on capabilities, predicts costs, applies
// any active A/B experiment, scores the candidates and selects the best
// agent. The pipeline fails only when no agent can serve the request at
// all; every other internal failure degrades to a conservative default.
package routing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"axonflow/router/agentpool"
	"axonflow/router/routing/analysis"
	"axonflow/router/routing/balancer"
	"axonflow/router/routing/capability"
	"axonflow/router/routing/costmodel"
	"axonflow/router/routing/experiment"
	"axonflow/router/shared/logger"
	"axonflow/router/shared/types"
)

// defaultPoolTimeout bounds the agent pool fetch. A slow pool reads as an
// empty pool rather than hanging the request.
const defaultPoolTimeout = 2 * time.Second

// maxAlternatives is the number of runner-up candidates returned.
const maxAlternatives = 3

// Observer receives routing lifecycle callbacks. The service layer installs
// a metrics observer; tests install probes. Callbacks run synchronously on
// the request path and must be cheap.
type Observer interface {
	// DecisionMade fires after a successful routing decision.
	DecisionMade(response *types.RoutingResponse)

	// ScorerDegraded fires when a pipeline stage failed and a conservative
	// default was substituted.
	ScorerDegraded(stage string, err error)

	// RoutingFailed fires when a request terminates with no agent.
	RoutingFailed(reason string)
}

// NopObserver ignores all callbacks.
type NopObserver struct{}

func (NopObserver) DecisionMade(*types.RoutingResponse) {}
func (NopObserver) ScorerDegraded(string, error)        {}
func (NopObserver) RoutingFailed(string)                {}

// Engine is the routing decision engine. Safe for concurrent per-request
// use.
type Engine struct {
	pool          agentpool.Pool
	analyzer      *analysis.Analyzer
	matcher       *capability.Matcher
	costModel     *costmodel.Model
	loadBalancer  *balancer.LoadBalancer
	costOptimizer *balancer.CostOptimizer
	experiments   *experiment.Manager

	standard        *StandardStrategy
	ml              *MLAssistedStrategy
	defaultStrategy ScoringStrategy

	history     *routingHistory
	observer    Observer
	log         *logger.Logger
	poolTimeout time.Duration
	now         func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCostModel replaces the default cost model.
func WithCostModel(model *costmodel.Model) EngineOption {
	return func(e *Engine) { e.costModel = model }
}

// WithExperiments attaches an experiment manager.
func WithExperiments(manager *experiment.Manager) EngineOption {
	return func(e *Engine) { e.experiments = manager }
}

// WithObserver installs a lifecycle observer.
func WithObserver(observer Observer) EngineOption {
	return func(e *Engine) { e.observer = observer }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithDefaultStrategy selects the scoring strategy used when no experiment
// variant configures one. Recognized names are "standard" and "ml-assisted";
// anything else keeps the standard strategy.
func WithDefaultStrategy(name string) EngineOption {
	return func(e *Engine) {
		if name == "ml-assisted" {
			e.defaultStrategy = e.ml
		}
	}
}

// WithPoolTimeout overrides the agent pool fetch deadline.
func WithPoolTimeout(timeout time.Duration) EngineOption {
	return func(e *Engine) { e.poolTimeout = timeout }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine routing against the given pool.
func NewEngine(pool agentpool.Pool, opts ...EngineOption) *Engine {
	e := &Engine{
		pool:          pool,
		matcher:       capability.NewMatcher(),
		loadBalancer:  balancer.NewLoadBalancer(),
		costOptimizer: balancer.NewCostOptimizer(),
		standard:      NewStandardStrategy(),
		ml:            NewMLAssistedStrategy(),
		history:       newRoutingHistory(),
		observer:      NopObserver{},
		poolTimeout:   defaultPoolTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.New("routing-engine")
	}
	e.analyzer = analysis.NewAnalyzer(e.log)
	if e.costModel == nil {
		e.costModel = costmodel.NewModel(costmodel.NewFeed(), costmodel.WithLogger(e.log))
	}
	if e.defaultStrategy == nil {
		e.defaultStrategy = e.standard
	}
	return e
}

// LoadBalancer exposes the engine's load balancer for feedback wiring.
func (e *Engine) LoadBalancer() *balancer.LoadBalancer { return e.loadBalancer }

// CostOptimizer exposes the engine's cost optimizer for feedback wiring.
func (e *Engine) CostOptimizer() *balancer.CostOptimizer { return e.costOptimizer }

// CostModel exposes the engine's cost model.
func (e *Engine) CostModel() *costmodel.Model { return e.costModel }

// Experiments exposes the attached experiment manager, or nil.
func (e *Engine) Experiments() *experiment.Manager { return e.experiments }

// RecentDecisions returns up to limit routing decisions, newest first.
func (e *Engine) RecentDecisions(limit int) []HistoryEntry {
	return e.history.recent(limit)
}

// RouteRequest runs the full routing pipeline for one request:
// Analyze, Filter, Cost-Predict, Experiment-Assign, Score, Select, Record.
// It returns ErrNoAgentsAvailable or ErrNoCapabilityMatch when no agent can
// serve the request; it never surfaces internal scorer failures.
func (e *Engine) RouteRequest(ctx context.Context, req types.RoutingRequest) (*types.RoutingResponse, error) {
	started := e.now()
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	// Pool fetch is the only external call on the request path; a slow or
	// failing pool reads as no agents.
	poolCtx, cancel := context.WithTimeout(ctx, e.poolTimeout)
	agents, err := e.pool.GetAvailableAgents(poolCtx)
	cancel()
	if err != nil {
		e.log.ErrorWithErr(req.UserID, req.RequestID, "agent pool fetch failed", err, nil)
		e.observer.RoutingFailed("pool_unavailable")
		return nil, fmt.Errorf("agent pool fetch failed: %w", ErrNoAgentsAvailable)
	}
	if len(agents) == 0 {
		e.observer.RoutingFailed("empty_pool")
		return nil, ErrNoAgentsAvailable
	}

	reqContext := e.analyzer.Analyze(req.Prompt, req.UserID, req.PreviousContext)

	priority := req.Priority
	if !priority.IsValid() {
		priority = reqContext.Urgency
	}

	candidates := e.matcher.FilterByCapabilities(agents, reqContext.Capabilities)
	if len(candidates) == 0 {
		e.log.Warn(req.UserID, req.RequestID, "no agent matches required capabilities",
			map[string]interface{}{"capabilities": reqContext.Capabilities, "pool_size": len(agents)})
		e.observer.RoutingFailed("no_capability_match")
		return nil, ErrNoCapabilityMatch
	}

	estimatedTokens := reqContext.Metadata.EstimatedTokens + reqContext.Metadata.ExpectedResponseLength
	predictions := e.predictCosts(ctx, req, candidates, reqContext, priority, estimatedTokens, started)

	strategy, variants := e.applyExperiments(ctx, req.UserID)

	ranked := e.scoreCandidates(candidates, req, reqContext, priority, estimatedTokens, predictions, strategy)

	selected := ranked[0]
	e.pool.IncrementAgentLoad(selected.Agent.ID)

	alternatives := ranked[1:]
	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}

	response := &types.RoutingResponse{
		RequestID:          req.RequestID,
		Selected:           selected,
		Alternatives:       alternatives,
		Context:            reqContext,
		Strategy:           strategy.Name(),
		ExperimentVariants: variants,
		Explanation:        buildExplanation(&selected, reqContext),
		DecidedAt:          started,
		LatencyMs:          e.now().Sub(started).Milliseconds(),
	}

	e.record(ctx, req, response, variants)
	e.observer.DecisionMade(response)

	e.log.InfoWithDuration(req.UserID, req.RequestID, "request routed", float64(response.LatencyMs),
		map[string]interface{}{
			"agent":    selected.Agent.ID,
			"score":    selected.Score,
			"strategy": response.Strategy,
		})
	return response, nil
}

// predictCosts runs the cost model, degrading to no predictions on failure.
// The returned map is keyed by provider/model.
func (e *Engine) predictCosts(ctx context.Context, req types.RoutingRequest, candidates []types.AgentSnapshot, reqContext *types.RequestContext, priority types.Priority, estimatedTokens int, now time.Time) map[string]*types.CostPrediction {
	out, err := e.costModel.PredictCosts(ctx, costmodel.Input{
		UserID:          req.UserID,
		Candidates:      candidates,
		EstimatedTokens: estimatedTokens,
		Complexity:      reqContext.Complexity.Overall,
		Priority:        priority,
		MaxCost:         req.MaxCost,
		MonthlyBudget:   req.MonthlyBudget,
		Now:             now,
	})
	if err != nil {
		e.log.ErrorWithErr(req.UserID, req.RequestID, "cost prediction degraded", err, nil)
		e.observer.ScorerDegraded("cost-prediction", err)
		return nil
	}

	predictions := make(map[string]*types.CostPrediction, len(out.Predictions))
	for i := range out.Predictions {
		p := &out.Predictions[i]
		predictions[p.Provider+"/"+p.Model] = p
	}
	return predictions
}

// applyExperiments assigns the user to every active test and returns the
// scoring strategy the winning variant configures, plus the assignment map.
// Assignment failures degrade to the standard strategy.
func (e *Engine) applyExperiments(ctx context.Context, userID string) (ScoringStrategy, map[string]string) {
	strategy := e.defaultStrategy
	if e.experiments == nil || userID == "" {
		return strategy, nil
	}

	var variants map[string]string
	strategyChosen := false
	for _, test := range e.experiments.ActiveTests() {
		variant, err := e.experiments.AssignVariant(ctx, test.ID, userID)
		if err != nil {
			continue
		}
		if variants == nil {
			variants = make(map[string]string)
		}
		variants[test.ID] = variant.Name

		if strategyChosen {
			continue
		}
		if configured := e.strategyFromConfig(variant.Config); configured != nil {
			strategy = configured
			strategyChosen = true
		}
	}
	return strategy, variants
}

// strategyFromConfig builds the strategy a variant config names, or nil
// when the config does not configure scoring.
func (e *Engine) strategyFromConfig(config map[string]interface{}) ScoringStrategy {
	name, _ := config["strategy"].(string)
	weights := weightsFromConfig(config, DefaultWeights)

	switch name {
	case "ml-assisted":
		// Share one statistics store across variants so training is not
		// split per experiment.
		if weights == e.ml.Weights {
			return e.ml
		}
		ml := &MLAssistedStrategy{Weights: weights, MLWeight: e.ml.MLWeight, shards: e.ml.shards}
		return ml
	case "standard":
		return &StandardStrategy{Weights: weights}
	default:
		return nil
	}
}

// weightsFromConfig reads a {"weights": {"capability": .., "cost": ..,
// "load": ..}} override, falling back per key.
func weightsFromConfig(config map[string]interface{}, fallback Weights) Weights {
	raw, ok := config["weights"].(map[string]interface{})
	if !ok {
		return fallback
	}
	weights := fallback
	if v, ok := raw["capability"].(float64); ok {
		weights.Capability = v
	}
	if v, ok := raw["cost"].(float64); ok {
		weights.Cost = v
	}
	if v, ok := raw["load"].(float64); ok {
		weights.Load = v
	}
	return weights
}

// scoreCandidates scores every candidate and returns them ranked by
// descending score, ties broken by agent id for determinism.
func (e *Engine) scoreCandidates(candidates []types.AgentSnapshot, req types.RoutingRequest, reqContext *types.RequestContext, priority types.Priority, estimatedTokens int, predictions map[string]*types.CostPrediction, strategy ScoringStrategy) []types.RankedAgent {
	lbStrategy := e.loadBalancer.SelectStrategy(priority, len(candidates))
	complexityTier := reqContext.ComplexityTier()

	ranked := make([]types.RankedAgent, 0, len(candidates))
	for i := range candidates {
		agent := &candidates[i]

		match := e.matcher.Score(agent, reqContext.Capabilities, req.PreferredCapabilities, complexityTier)
		loadScore := e.loadBalancer.Score(agent, lbStrategy)
		costScore := e.costOptimizer.Score(agent, estimatedTokens, req.MaxCost)

		score, reasons := e.safeScore(strategy, ScoreInput{
			Agent:      agent,
			Context:    reqContext,
			Capability: match,
			CostScore:  costScore,
			LoadScore:  loadScore,
		}, req)

		entry := types.RankedAgent{
			Agent:   *agent,
			Score:   score,
			Reasons: reasons,
		}
		if prediction, ok := predictions[agent.Provider+"/"+agent.Model]; ok {
			entry.Cost = prediction
		}
		ranked = append(ranked, entry)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Agent.ID < ranked[j].Agent.ID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// safeScore shields the pipeline from a panicking strategy, substituting
// the capability score as the conservative default.
func (e *Engine) safeScore(strategy ScoringStrategy, in ScoreInput, req types.RoutingRequest) (score float64, reasons []string) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("scoring strategy panicked: %v", r)
			e.log.ErrorWithErr(req.UserID, req.RequestID, "scoring degraded", err,
				map[string]interface{}{"agent": in.Agent.ID})
			e.observer.ScorerDegraded("strategy", err)
			score = in.Capability.Score
			reasons = []string{"scored on capability fit only"}
		}
	}()
	return strategy.Score(in)
}

// record appends the decision to routing history and files a provisional
// result for every experiment the user is in.
func (e *Engine) record(ctx context.Context, req types.RoutingRequest, response *types.RoutingResponse, variants map[string]string) {
	e.history.append(HistoryEntry{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		AgentID:   response.Selected.Agent.ID,
		Provider:  response.Selected.Agent.Provider,
		Model:     response.Selected.Agent.Model,
		Score:     response.Selected.Score,
		Strategy:  response.Strategy,
		Tests:     variants,
		DecidedAt: response.DecidedAt,
	})

	if e.experiments == nil {
		return
	}
	for testID, variantName := range variants {
		e.experiments.RecordResult(ctx, experiment.Result{
			TestID:      testID,
			VariantName: variantName,
			UserID:      req.UserID,
			RequestID:   req.RequestID,
			Provisional: true,
		})
	}
}

// TrainWithOutcome feeds post-execution feedback into the ML strategy, the
// load and cost histories, and completes any provisional experiment
// records. It never fails the caller; errors are logged and dropped.
func (e *Engine) TrainWithOutcome(agentID string, outcome types.RoutingOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("", outcome.RequestID, "outcome training panicked",
				map[string]interface{}{"panic": fmt.Sprint(r), "agent": agentID})
		}
	}()

	e.ml.Train(agentID, outcome)
	if outcome.ResponseTimeMs > 0 {
		e.loadBalancer.RecordResponseTime(agentID, outcome.ResponseTimeMs)
	}
	if outcome.ActualCost > 0 {
		e.costOptimizer.RecordCost(agentID, outcome.ActualCost)
	}

	if e.experiments == nil || outcome.RequestID == "" {
		return
	}
	entry, ok := e.history.byRequestID(outcome.RequestID)
	if !ok {
		return
	}
	// The in-memory completion is synchronous; the store mirror bounds
	// itself, so the background context must outlive this call.
	for testID := range entry.Tests {
		e.experiments.CompleteResult(context.Background(), testID, outcome.RequestID,
			outcome.ResponseTimeMs, outcome.ActualCost, outcome.Quality, outcome.Success)
	}
}

// buildExplanation summarizes why the agent won, naming the dominant
// factors and the analyzed context.
func buildExplanation(selected *types.RankedAgent, reqContext *types.RequestContext) string {
	explanation := fmt.Sprintf("selected %s (%s/%s, score %.1f)",
		selected.Agent.ID, selected.Agent.Provider, selected.Agent.Model, selected.Score)

	for _, reason := range selected.Reasons {
		explanation += "; " + reason
	}

	explanation += fmt.Sprintf("; intent %s (confidence %.2f), complexity %.0f",
		reqContext.Intent.Primary, reqContext.Intent.Confidence, reqContext.Complexity.Overall)

	if selected.Cost != nil {
		explanation += fmt.Sprintf(", predicted cost $%.4f", selected.Cost.PredictedCost)
	}
	return explanation
}
