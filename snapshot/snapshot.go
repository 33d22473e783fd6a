// Package snapshot defines the aggregate payload needed to render the main
// dashboard in one request, and the defensive normalization applied to the
// remote form of it.
package snapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source tags where a snapshot came from.
type Source string

const (
	SourceBackend Source = "backend"
	SourceMock    Source = "mock"
)

type ProjectStatus string

const (
	ProjectPlanning ProjectStatus = "planning"
	ProjectActive   ProjectStatus = "active"
	ProjectOnHold   ProjectStatus = "on_hold"
	ProjectComplete ProjectStatus = "complete"
)

type Project struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	ClientName string          `json:"client_name"`
	Status     ProjectStatus   `json:"status"`
	Budget     decimal.Decimal `json:"budget"`
	Spent      decimal.Decimal `json:"spent"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	Progress   int             `json:"progress"` // 0-100
	ManagerID  string          `json:"manager_id"`
}

type TeamMember struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Phone     string `json:"phone"`
	ProjectID string `json:"project_id,omitempty"`
	OnSite    bool   `json:"on_site"`
}

type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentInUse       EquipmentStatus = "in_use"
	EquipmentMaintenance EquipmentStatus = "maintenance"
)

type Equipment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Kind        string          `json:"kind"` // excavator, crane, generator...
	Status      EquipmentStatus `json:"status"`
	ProjectID   string          `json:"project_id,omitempty"`
	DayRate     decimal.Decimal `json:"day_rate"`
	NextService time.Time       `json:"next_service"`
}

type Task struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Title      string    `json:"title"`
	AssigneeID string    `json:"assignee_id,omitempty"`
	Due        time.Time `json:"due"`
	Done       bool      `json:"done"`
}

type ActivityEntry struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
}

type IncidentSeverity string

const (
	IncidentLow      IncidentSeverity = "low"
	IncidentMedium   IncidentSeverity = "medium"
	IncidentHigh     IncidentSeverity = "high"
	IncidentCritical IncidentSeverity = "critical"
)

type Incident struct {
	ID         string           `json:"id"`
	ProjectID  string           `json:"project_id"`
	Severity   IncidentSeverity `json:"severity"`
	Summary    string           `json:"summary"`
	ReportedAt time.Time        `json:"reported_at"`
	Resolved   bool             `json:"resolved"`
}

type Expense struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Category  string          `json:"category"` // materials, labor, equipment, permits
	Amount    decimal.Decimal `json:"amount"`
	Incurred  time.Time       `json:"incurred"`
	Approved  bool            `json:"approved"`
}

// PortfolioSummary is computed from the arrays, never trusted from the wire.
type PortfolioSummary struct {
	ActiveProjects  int             `json:"active_projects"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	OpenIncidents   int             `json:"open_incidents"`
	OverdueTasks    int             `json:"overdue_tasks"`
	CrewOnSite      int             `json:"crew_on_site"`
	UnapprovedSpend decimal.Decimal `json:"unapproved_spend"`
}

// Snapshot is the canonical dashboard aggregate. Source and UsedFallback tag
// how it was obtained; callers treat the data identically either way.
type Snapshot struct {
	Projects    []Project       `json:"projects"`
	Team        []TeamMember    `json:"team"`
	Equipment   []Equipment     `json:"equipment"`
	Tasks       []Task          `json:"tasks"`
	ActivityLog []ActivityEntry `json:"activity_log"`
	Incidents   []Incident      `json:"incidents"`
	Expenses    []Expense       `json:"expenses"`

	Summary      PortfolioSummary `json:"summary"`
	Source       Source           `json:"source"`
	UsedFallback bool             `json:"used_fallback"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

// ComputeSummary recalculates the portfolio summary from the arrays.
func (s *Snapshot) ComputeSummary(now time.Time) {
	summary := PortfolioSummary{
		TotalBudget:     decimal.Zero,
		TotalSpent:      decimal.Zero,
		UnapprovedSpend: decimal.Zero,
	}

	for _, p := range s.Projects {
		if p.Status == ProjectActive {
			summary.ActiveProjects++
		}
		summary.TotalBudget = summary.TotalBudget.Add(p.Budget)
		summary.TotalSpent = summary.TotalSpent.Add(p.Spent)
	}
	for _, i := range s.Incidents {
		if !i.Resolved {
			summary.OpenIncidents++
		}
	}
	for _, task := range s.Tasks {
		if !task.Done && !task.Due.IsZero() && task.Due.Before(now) {
			summary.OverdueTasks++
		}
	}
	for _, m := range s.Team {
		if m.OnSite {
			summary.CrewOnSite++
		}
	}
	for _, e := range s.Expenses {
		if !e.Approved {
			summary.UnapprovedSpend = summary.UnapprovedSpend.Add(e.Amount)
		}
	}

	s.Summary = summary
}
