package server

import (
	"net/http"

	"github.com/safeguardhq/safeguard/internal/reports"
)

func handleSubmitReport(store *reports.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub reports.Submission
		if err := readJSON(r, &sub); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id := identityFrom(r)
		report, err := store.Submit(r.Context(), id.UserID, sub)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, report)
	}
}

type ReportsResponse struct {
	Reports []reports.Report `json:"reports"`
}

func handleListReports(store *reports.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		list, err := store.ByReporter(r.Context(), id.UserID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if list == nil {
			list = []reports.Report{}
		}
		writeJSON(w, http.StatusOK, ReportsResponse{Reports: list})
	}
}
