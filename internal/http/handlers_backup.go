package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/k4rnaj1k/finance-tracker/internal/backup"
)

// handleExport streams the full data set as a downloadable JSON
// document named after the current date.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.reconciler.ExportJSON(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", backup.Filename(s.now())))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleImport replaces the store contents with the uploaded document.
// A structurally invalid document is rejected before any write; a
// failure partway surfaces with the mixed-state warning baked into the
// error text.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 16<<20))
	if err != nil {
		badRequest(w, "read import document: "+err.Error())
		return
	}
	if err := s.reconciler.Import(r.Context(), data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
