package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/lychee-technology/tempora"
)

// mergeRequestPayload is the wire shape of a merge/plan call; it mirrors
// tempora.MergeRequest field-for-field with JSON tags, since MergeRequest
// itself carries no tags (it's addressed positionally by Go callers, not
// by JSON clients, everywhere else in the pipeline).
type mergeRequestPayload struct {
	TargetSchema             string     `json:"target_schema"`
	TargetTable              string     `json:"target_table"`
	SourceSchema             string     `json:"source_schema"`
	SourceTable              string     `json:"source_table"`
	IdentityColumns          []string   `json:"identity_columns"`
	Mode                     string     `json:"mode"`
	EraName                  string     `json:"era_name"`
	RowIDColumn              string     `json:"row_id_column"`
	FoundingIDColumn         string     `json:"founding_id_column"`
	DeleteMode               string     `json:"delete_mode"`
	LookupKeys               [][]string `json:"lookup_keys"`
	EphemeralColumns         []string   `json:"ephemeral_columns"`
	UpdateSourceWithFeedback bool       `json:"update_source_with_feedback"`
	FeedbackStatusColumn     string     `json:"feedback_status_column"`
	FeedbackStatusKey        string     `json:"feedback_status_key"`
}

func (p mergeRequestPayload) toMergeRequest() (*tempora.MergeRequest, error) {
	if p.TargetSchema == "" || p.TargetTable == "" {
		return nil, fmt.Errorf("target_schema and target_table are required")
	}
	if p.SourceSchema == "" || p.SourceTable == "" {
		return nil, fmt.Errorf("source_schema and source_table are required")
	}
	if p.Mode == "" {
		return nil, fmt.Errorf("mode is required")
	}

	return &tempora.MergeRequest{
		TargetTable:              tempora.TableIdentity{Schema: p.TargetSchema, Table: p.TargetTable},
		SourceTable:              tempora.TableIdentity{Schema: p.SourceSchema, Table: p.SourceTable},
		IdentityColumns:          p.IdentityColumns,
		Mode:                     tempora.MergeMode(p.Mode),
		EraName:                  p.EraName,
		RowIDColumn:              p.RowIDColumn,
		FoundingIDColumn:         p.FoundingIDColumn,
		DeleteMode:               tempora.DeleteMode(p.DeleteMode),
		LookupKeys:               p.LookupKeys,
		EphemeralColumns:         p.EphemeralColumns,
		UpdateSourceWithFeedback: p.UpdateSourceWithFeedback,
		FeedbackStatusColumn:     p.FeedbackStatusColumn,
		FeedbackStatusKey:        p.FeedbackStatusKey,
	}, nil
}

// handleMerge handles POST /api/v1/merge: plan and execute a temporal merge
// of source_table into target_table within one transaction.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload mergeRequestPayload
	if err := readJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	req, err := payload.toMergeRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.merger.Merge(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("merge failed: %v", err))
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// handlePlan handles POST /api/v1/plan: run the planner without executing,
// for plan introspection / dry-run review.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload mergeRequestPayload
	if err := readJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	req, err := payload.toMergeRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ops, err := s.merger.PlanOnly(r.Context(), req)
	if err != nil {
		writeError(w, statusForError(err), fmt.Sprintf("plan failed: %v", err))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"plan_ops": ops})
}

// statusForError maps a TemporalMergeError's kind to the HTTP status a
// client should treat it as; everything else falls back to 500.
func statusForError(err error) int {
	switch {
	case tempora.IsKind(err, tempora.ErrKindValidation), tempora.IsMissingInterval(err), tempora.IsInvalidInterval(err), tempora.IsAmbiguousInterval(err):
		return http.StatusBadRequest
	case tempora.IsEraNotFound(err):
		return http.StatusNotFound
	case tempora.IsConflictingFoundingLookup(err), tempora.IsConflictingIdentityResolution(err), tempora.IsInputNotSorted(err):
		return http.StatusConflict
	case tempora.IsPlannerInvariantViolation(err):
		return http.StatusInternalServerError
	default:
		log.Printf("unclassified merge error: %v", err)
		return http.StatusInternalServerError
	}
}
