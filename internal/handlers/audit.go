package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"learntrust-backend/internal/ledger"
	"learntrust-backend/internal/repository"
)

type AuditHandler struct {
	chain *ledger.Ledger
	repo  *repository.AuditRepo
}

func NewAuditHandler(chain *ledger.Ledger, repo *repository.AuditRepo) *AuditHandler {
	return &AuditHandler{chain: chain, repo: repo}
}

// Verify recomputes the chain over an optional [from, to] range and
// reports the first break, if any. Defaults to the full chain.
func (h *AuditHandler) Verify(w http.ResponseWriter, r *http.Request) {
	from := int64(0)
	to := int64(-1)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"from": "must be a non-negative integer"}, r))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"to": "must be a non-negative integer"}, r))
			return
		}
		to = parsed
	}

	report, err := h.chain.VerifyChain(r.Context(), from, to)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Export streams the audit chain as CSV for offline review.
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	head, err := h.repo.HeadIndex(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="audit_export_%s.csv"`, time.Now().UTC().Format("20060102_150405")))

	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{"index", "principal_id", "event_type", "timestamp", "prev_hash", "current_hash", "metadata"})

	if head < 0 {
		return
	}

	// Page through the chain so large exports stay bounded in memory.
	const pageSize = int64(1000)
	for from := int64(0); from <= head; from += pageSize {
		to := from + pageSize - 1
		if to > head {
			to = head
		}

		entries, err := h.repo.Range(r.Context(), from, to)
		if err != nil {
			return
		}

		for _, e := range entries {
			cw.Write([]string{
				strconv.FormatInt(e.Index, 10),
				e.PrincipalID.String(),
				e.EventType,
				e.Timestamp.UTC().Format(time.RFC3339),
				e.PrevHash,
				e.CurrentHash,
				string(e.Metadata),
			})
		}
	}
}
