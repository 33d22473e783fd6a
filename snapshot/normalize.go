package snapshot

import (
	"encoding/json"
	"time"
)

// remotePayload mirrors the backend snapshot endpoint. Every array arrives as
// raw JSON so one malformed section cannot fail the whole payload.
type remotePayload struct {
	Projects    json.RawMessage `json:"projects"`
	Team        json.RawMessage `json:"team"`
	Equipment   json.RawMessage `json:"equipment"`
	Tasks       json.RawMessage `json:"tasks"`
	ActivityLog json.RawMessage `json:"activityLog"`
	Incidents   json.RawMessage `json:"incidents"`
	Expenses    json.RawMessage `json:"expenses"`
}

// Normalize decodes a remote snapshot body into the canonical shape. Each
// array section that is absent, null, or malformed independently defaults to
// empty; only a body that is not a JSON object at all is an error.
func Normalize(body []byte, now time.Time) (*Snapshot, error) {
	var remote remotePayload
	if err := json.Unmarshal(body, &remote); err != nil {
		return nil, err
	}

	s := &Snapshot{
		Projects:    section[Project](remote.Projects),
		Team:        section[TeamMember](remote.Team),
		Equipment:   section[Equipment](remote.Equipment),
		Tasks:       section[Task](remote.Tasks),
		ActivityLog: section[ActivityEntry](remote.ActivityLog),
		Incidents:   section[Incident](remote.Incidents),
		Expenses:    section[Expense](remote.Expenses),
		Source:      SourceBackend,
		FetchedAt:   now,
	}
	s.ComputeSummary(now)
	return s, nil
}

func section[T any](raw json.RawMessage) []T {
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}
