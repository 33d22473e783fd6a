package server

import (
	"encoding/json"
	"net/http"

	"github.com/buildworks/sitelink/localdata"
	"github.com/buildworks/sitelink/snapshot"
	"github.com/buildworks/sitelink/transport"
)

// wireSnapshot is the over-the-wire shape of the dashboard endpoint. Section
// keys match what the production API emits.
type wireSnapshot struct {
	Projects    []snapshot.Project       `json:"projects"`
	Team        []snapshot.TeamMember    `json:"team"`
	Equipment   []snapshot.Equipment     `json:"equipment"`
	Tasks       []snapshot.Task          `json:"tasks"`
	ActivityLog []snapshot.ActivityEntry `json:"activityLog"`
	Incidents   []snapshot.Incident      `json:"incidents"`
	Expenses    []snapshot.Expense       `json:"expenses"`
}

// SnapshotHandler serves the aggregate dashboard payload. Data is generated
// deterministically per company, so repeated fetches agree with each other.
func (s *Server) SnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := s.accountFromContext(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "invalid token")
			return
		}

		companyID := r.URL.Query().Get("companyId")
		if companyID == "" {
			companyID = acct.user.CompanyID
		}
		if companyID != acct.user.CompanyID {
			writeError(w, http.StatusForbidden, "forbidden", "cannot read another company's data")
			return
		}

		snap, err := s.generator.Snapshot(r.Context(), localdata.Params{
			UserID:    acct.user.ID,
			CompanyID: companyID,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, transport.CodeServer, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, wireSnapshot{
			Projects:    snap.Projects,
			Team:        snap.Team,
			Equipment:   snap.Equipment,
			Tasks:       snap.Tasks,
			ActivityLog: snap.ActivityLog,
			Incidents:   snap.Incidents,
			Expenses:    snap.Expenses,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
