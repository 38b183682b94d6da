// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"axonflow/router/routing"
	"axonflow/router/routing/costmodel"
	"axonflow/router/routing/experiment"
	"axonflow/router/shared/types"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// RouteRequest handles POST /api/v1/route.
func (s *Server) RouteRequest(w http.ResponseWriter, r *http.Request) {
	var req types.RoutingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("X-Request-ID")
	}
	if req.UserID == "" {
		req.UserID = r.Header.Get("X-User-ID")
	}

	response, err := s.engine.RouteRequest(r.Context(), req)
	if err != nil {
		if errors.Is(err, routing.ErrNoAgentsAvailable) || errors.Is(err, routing.ErrNoCapabilityMatch) {
			s.writeError(w, http.StatusServiceUnavailable, "no agent available")
			return
		}
		s.log.ErrorWithErr(req.UserID, req.RequestID, "routing failed", err, nil)
		s.writeError(w, http.StatusInternalServerError, "routing failed")
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

// PredictCosts handles POST /api/v1/costs/predict.
func (s *Server) PredictCosts(w http.ResponseWriter, r *http.Request) {
	var input costmodel.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(input.Candidates) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one candidate is required")
		return
	}

	output, err := s.engine.CostModel().PredictCosts(r.Context(), input)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, output)
}

// RecordOutcome handles POST /api/v1/feedback/outcome. Feedback never
// fails: a malformed body is the only rejected case.
func (s *Server) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	var outcome types.RoutingOutcome
	if err := json.NewDecoder(r.Body).Decode(&outcome); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if outcome.AgentID == "" {
		s.writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	s.engine.TrainWithOutcome(outcome.AgentID, outcome)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RecordCost handles POST /api/v1/feedback/cost.
func (s *Server) RecordCost(w http.ResponseWriter, r *http.Request) {
	var record types.HistoricalCostRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if record.Provider == "" || record.Model == "" {
		s.writeError(w, http.StatusBadRequest, "provider and model are required")
		return
	}

	s.engine.CostModel().LearnFromActualCost(record)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// CreateExperiment handles POST /api/v1/experiments.
func (s *Server) CreateExperiment(w http.ResponseWriter, r *http.Request) {
	manager := s.engine.Experiments()
	if manager == nil {
		s.writeError(w, http.StatusNotImplemented, "experiments are not enabled")
		return
	}

	var def experiment.Test
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := manager.CreateTest(def)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

// StartExperiment handles POST /api/v1/experiments/{id}/start.
func (s *Server) StartExperiment(w http.ResponseWriter, r *http.Request) {
	s.transitionExperiment(w, r, func(m *experiment.Manager, id string) error {
		return m.StartTest(id)
	})
}

// CompleteExperiment handles POST /api/v1/experiments/{id}/complete.
func (s *Server) CompleteExperiment(w http.ResponseWriter, r *http.Request) {
	s.transitionExperiment(w, r, func(m *experiment.Manager, id string) error {
		return m.CompleteTest(id)
	})
}

func (s *Server) transitionExperiment(w http.ResponseWriter, r *http.Request, transition func(*experiment.Manager, string) error) {
	manager := s.engine.Experiments()
	if manager == nil {
		s.writeError(w, http.StatusNotImplemented, "experiments are not enabled")
		return
	}

	id := mux.Vars(r)["id"]
	if err := transition(manager, id); err != nil {
		if errors.Is(err, experiment.ErrTestNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	test, err := manager.GetTest(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, test)
}

// ExperimentResults handles GET /api/v1/experiments/{id}/results.
func (s *Server) ExperimentResults(w http.ResponseWriter, r *http.Request) {
	manager := s.engine.Experiments()
	if manager == nil {
		s.writeError(w, http.StatusNotImplemented, "experiments are not enabled")
		return
	}

	analysis, err := manager.AnalyzeTest(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

// ListAgents handles GET /api/v1/agents.
func (s *Server) ListAgents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	agents, err := s.pool.GetAvailableAgents(ctx)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "agent pool unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
		"count":  len(agents),
	})
}

// RecentDecisions handles GET /api/v1/decisions.
func (s *Server) RecentDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": s.engine.RecentDecisions(limit),
	})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
