package internal

import "strings"

// RenderCausalIDValuesCSV builds a VALUES-list fragment for embedding a set
// of causal ids into a batched feedback-write statement, e.g.
// "UPDATE src SET status = v.status FROM (VALUES ('id1','APPLIED'), ...) AS v(...)".
func RenderCausalIDValuesCSV(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "('"+strings.ReplaceAll(id, "'", "''")+"')")
	}
	return strings.Join(parts, ",")
}
