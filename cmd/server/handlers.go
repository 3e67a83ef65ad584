package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/liamcoop/tablerules/container"
	"github.com/liamcoop/tablerules/decisiontable"
	"github.com/liamcoop/tablerules/history"
	"github.com/liamcoop/tablerules/internal/logger"
	"github.com/liamcoop/tablerules/records"
	"github.com/liamcoop/tablerules/rules"
	"github.com/liamcoop/tablerules/transform"
)

const maxUploadSize = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "healthy",
		RuleSets: len(s.manager.List()),
		Counters: logger.Counters(),
	}
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Database = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBuildRuleSet(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid upload", err)
		return
	}

	c, err := s.manager.Build(r.Context(), name, data)
	if err != nil {
		respondError(w, statusFor(err), "failed to build ruleset", err)
		return
	}
	respondJSON(w, http.StatusCreated, newRuleSetResponse(c))
}

func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	resp := RuleSetsListResponse{RuleSets: []RuleSetResponse{}}
	for _, c := range s.manager.List() {
		resp.RuleSets = append(resp.RuleSets, newRuleSetResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	c, err := s.manager.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, statusFor(err), "ruleset not found", err)
		return
	}

	resp := RuleSetDetailResponse{RuleSetResponse: newRuleSetResponse(c), Rules: []RuleResponse{}}
	for _, rule := range c.RuleSet.Rules() {
		resp.Rules = append(resp.Rules, newRuleResponse(rule))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Remove(r.Context(), chi.URLParam(r, "name")); err != nil {
		respondError(w, statusFor(err), "failed to remove ruleset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := s.service.Run(r.Context(), transform.Request{
		RuleSet: chi.URLParam(r, "name"),
		Source:  "api",
		Records: req.Records,
	})
	if err != nil {
		respondError(w, statusFor(err), "execution failed", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	csvName, csvData, err := readUpload(r, "csv")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid csv upload", err)
		return
	}
	rulesName, rulesData, err := readUpload(r, "rules")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rules upload", err)
		return
	}

	inputs, _, err := readRecords(csvData, r.FormValue("comma"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid csv", err)
		return
	}

	res, err := s.service.Run(r.Context(), transform.Request{
		Resource: rulesName,
		Rules:    rulesData,
		Source:   csvName,
		Records:  inputs,
	})
	if err != nil {
		respondError(w, statusFor(err), "transform failed", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := s.service.History().List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	respondJSON(w, http.StatusOK, RunsListResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id", err)
		return
	}

	run, err := s.service.History().Get(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), "run not found", err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// readUpload returns the base name and content of a multipart file field.
func readUpload(r *http.Request, field string) (string, []byte, error) {
	if r.MultipartForm == nil {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return "", nil, fmt.Errorf("failed to parse form: %w", err)
		}
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", hdr.Filename, err)
	}
	return filepath.Base(hdr.Filename), data, nil
}

// readRecords parses an uploaded CSV file. An empty comma keeps the default separator.
func readRecords(data []byte, comma string) ([]records.Record, []string, error) {
	var opts []records.Option
	if comma != "" {
		r := []rune(comma)
		if len(r) != 1 {
			return nil, nil, fmt.Errorf("separator must be a single character, got %q", comma)
		}
		opts = append(opts, records.WithComma(r[0]))
	}
	return records.ReadCSV(bytes.NewReader(data), opts...)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, container.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, container.ErrBuildFailed),
		errors.Is(err, decisiontable.ErrUnsupportedFormat),
		errors.Is(err, records.ErrNoHeader):
		return http.StatusBadRequest
	case errors.Is(err, rules.ErrActionFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}

	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
	case status >= 400:
		logger.WarnHttp4xx(status)
	}
	respondJSON(w, status, response)
}
