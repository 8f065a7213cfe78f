package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lychee-technology/tempora"
)

type mockMerger struct {
	mergeResult *tempora.MergeResult
	mergeErr    error
	planOps     []tempora.PlanOp
	planErr     error
}

func (m *mockMerger) Merge(ctx context.Context, req *tempora.MergeRequest) (*tempora.MergeResult, error) {
	if m.mergeErr != nil {
		return nil, m.mergeErr
	}
	if m.mergeResult != nil {
		return m.mergeResult, nil
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockMerger) PlanOnly(ctx context.Context, req *tempora.MergeRequest) ([]tempora.PlanOp, error) {
	if m.planErr != nil {
		return nil, m.planErr
	}
	return m.planOps, nil
}

func validMergePayload() []byte {
	return []byte(`{
		"target_schema": "public",
		"target_table": "employees",
		"source_schema": "public",
		"source_table": "employees_src",
		"identity_columns": ["employee_id"],
		"mode": "MERGE_ENTITY_UPSERT"
	}`)
}

func TestHandleMergeSuccess(t *testing.T) {
	server := &Server{
		merger: &mockMerger{
			mergeResult: &tempora.MergeResult{
				PlanOps: []tempora.PlanOp{{Operation: tempora.OpInsert}},
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", bytes.NewReader(validMergePayload()))
	rec := httptest.NewRecorder()
	server.handleMerge(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleMergeValidation(t *testing.T) {
	server := &Server{merger: &mockMerger{}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", bytes.NewReader([]byte(`{"target_schema": ""}`)))
	rec := httptest.NewRecorder()
	server.handleMerge(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleMergeWrongMethod(t *testing.T) {
	server := &Server{merger: &mockMerger{}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merge", nil)
	rec := httptest.NewRecorder()
	server.handleMerge(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestHandleMergeEraNotFound(t *testing.T) {
	server := &Server{
		merger: &mockMerger{mergeErr: tempora.NewEraNotFoundError("public", "employees", "valid")},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/merge", bytes.NewReader(validMergePayload()))
	rec := httptest.NewRecorder()
	server.handleMerge(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestHandlePlanSuccess(t *testing.T) {
	server := &Server{
		merger: &mockMerger{planOps: []tempora.PlanOp{{Operation: tempora.OpUpdate}}},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", bytes.NewReader(validMergePayload()))
	rec := httptest.NewRecorder()
	server.handlePlan(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePlanConflict(t *testing.T) {
	server := &Server{
		merger: &mockMerger{planErr: tempora.NewConflictingIdentityResolutionError("employee_id=42")},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", bytes.NewReader(validMergePayload()))
	rec := httptest.NewRecorder()
	server.handlePlan(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}
