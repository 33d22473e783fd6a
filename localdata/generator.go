package localdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/buildworks/sitelink/snapshot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ Provider = (*Generator)(nil)

// Generator is a deterministic in-memory Provider. The same company always
// gets the same data set so the UI stays stable across fallback fetches within
// a run and across reloads.
type Generator struct {
	nowFunc func() time.Time
}

type GeneratorOption func(*Generator)

func WithNowFunc(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.nowFunc = now
	}
}

func NewGenerator(options ...GeneratorOption) *Generator {
	g := &Generator{nowFunc: time.Now}
	for _, opt := range options {
		opt(g)
	}
	return g
}

var (
	projectNames = []string{
		"Riverside Depot", "Harbor Office Fit-out", "Northgate Warehouse",
		"Cedar Lane Townhomes", "Eastfield Substation", "Old Mill Renovation",
	}
	clientNames = []string{
		"Meridian Holdings", "Calder Logistics", "Brightline Retail",
		"Foster & Sons", "Municipal Works Dept",
	}
	crewNames = []string{
		"Dana Reyes", "Marcus Webb", "Elena Kovac", "Sam Okafor",
		"Priya Nair", "Tom Haller", "Rosa Delgado", "Jack Munro",
	}
	equipmentKinds = []string{"excavator", "crane", "generator", "scissor lift", "compactor", "telehandler"}
	taskTitles     = []string{
		"Pour footings", "Frame second floor", "Rough-in electrical",
		"Inspect scaffolding", "Order rebar", "Schedule concrete delivery",
		"Update safety signage", "Close out punch list",
	}
	expenseCategories = []string{"materials", "labor", "equipment", "permits"}
)

// Snapshot generates the full dashboard data set, seeded by CompanyID.
func (g *Generator) Snapshot(_ context.Context, params Params) (*snapshot.Snapshot, error) {
	now := g.nowFunc()
	rng := rand.New(rand.NewSource(int64(seed(params.CompanyID))))

	s := &snapshot.Snapshot{
		Source:    snapshot.SourceMock,
		FetchedAt: now,
	}

	projectCount := 3 + rng.Intn(3)
	for i := 0; i < projectCount; i++ {
		budget := decimal.NewFromInt(int64(50_000 + rng.Intn(400_000)))
		progress := rng.Intn(101)
		spent := budget.Mul(decimal.NewFromInt(int64(progress))).Div(decimal.NewFromInt(100)).Round(2)

		status := snapshot.ProjectActive
		switch {
		case progress == 0:
			status = snapshot.ProjectPlanning
		case progress == 100:
			status = snapshot.ProjectComplete
		case rng.Intn(8) == 0:
			status = snapshot.ProjectOnHold
		}

		s.Projects = append(s.Projects, snapshot.Project{
			ID:         deterministicID(rng),
			Name:       projectNames[i%len(projectNames)],
			ClientName: clientNames[rng.Intn(len(clientNames))],
			Status:     status,
			Budget:     budget,
			Spent:      spent,
			StartDate:  now.AddDate(0, -rng.Intn(10), 0),
			EndDate:    now.AddDate(0, 2+rng.Intn(10), 0),
			Progress:   progress,
			ManagerID:  params.UserID,
		})
	}

	for i, name := range crewNames {
		member := snapshot.TeamMember{
			ID:     deterministicID(rng),
			Name:   name,
			Role:   []string{"foreman", "field_worker", "field_worker", "operator"}[i%4],
			Phone:  fmt.Sprintf("555-01%02d", rng.Intn(100)),
			OnSite: rng.Intn(3) != 0,
		}
		if len(s.Projects) > 0 {
			member.ProjectID = s.Projects[rng.Intn(len(s.Projects))].ID
		}
		s.Team = append(s.Team, member)
	}

	for i := 0; i < 5+rng.Intn(4); i++ {
		kind := equipmentKinds[rng.Intn(len(equipmentKinds))]
		eq := snapshot.Equipment{
			ID:          deterministicID(rng),
			Name:        fmt.Sprintf("%s #%d", kind, i+1),
			Kind:        kind,
			Status:      []snapshot.EquipmentStatus{snapshot.EquipmentAvailable, snapshot.EquipmentInUse, snapshot.EquipmentInUse, snapshot.EquipmentMaintenance}[rng.Intn(4)],
			DayRate:     decimal.NewFromInt(int64(200 + rng.Intn(1200))),
			NextService: now.AddDate(0, 0, rng.Intn(90)),
		}
		if eq.Status == snapshot.EquipmentInUse && len(s.Projects) > 0 {
			eq.ProjectID = s.Projects[rng.Intn(len(s.Projects))].ID
		}
		s.Equipment = append(s.Equipment, eq)
	}

	for i, title := range taskTitles {
		task := snapshot.Task{
			ID:    deterministicID(rng),
			Title: title,
			Due:   now.AddDate(0, 0, rng.Intn(21)-7),
			Done:  i%3 == 0,
		}
		if len(s.Projects) > 0 {
			task.ProjectID = s.Projects[rng.Intn(len(s.Projects))].ID
		}
		if len(s.Team) > 0 {
			task.AssigneeID = s.Team[rng.Intn(len(s.Team))].ID
		}
		s.Tasks = append(s.Tasks, task)
	}

	actions := []string{"clocked_in", "uploaded_photo", "approved_timesheet", "flagged_incident", "updated_task"}
	for i := 0; i < 10; i++ {
		entry := snapshot.ActivityEntry{
			ID:        deterministicID(rng),
			Action:    actions[rng.Intn(len(actions))],
			Timestamp: now.Add(-time.Duration(rng.Intn(72)) * time.Hour),
		}
		if len(s.Team) > 0 {
			entry.ActorID = s.Team[rng.Intn(len(s.Team))].ID
		}
		if len(s.Projects) > 0 {
			entry.Subject = s.Projects[rng.Intn(len(s.Projects))].Name
		}
		s.ActivityLog = append(s.ActivityLog, entry)
	}

	severities := []snapshot.IncidentSeverity{snapshot.IncidentLow, snapshot.IncidentLow, snapshot.IncidentMedium, snapshot.IncidentHigh}
	for i := 0; i < rng.Intn(4); i++ {
		incident := snapshot.Incident{
			ID:         deterministicID(rng),
			Severity:   severities[rng.Intn(len(severities))],
			Summary:    "Near miss reported on site",
			ReportedAt: now.Add(-time.Duration(rng.Intn(240)) * time.Hour),
			Resolved:   rng.Intn(2) == 0,
		}
		if len(s.Projects) > 0 {
			incident.ProjectID = s.Projects[rng.Intn(len(s.Projects))].ID
		}
		s.Incidents = append(s.Incidents, incident)
	}

	for i := 0; i < 8+rng.Intn(8); i++ {
		expense := snapshot.Expense{
			ID:       deterministicID(rng),
			Category: expenseCategories[rng.Intn(len(expenseCategories))],
			Amount:   decimal.NewFromInt(int64(100 + rng.Intn(20_000))).Add(decimal.NewFromInt(int64(rng.Intn(100))).Div(decimal.NewFromInt(100))),
			Incurred: now.AddDate(0, 0, -rng.Intn(60)),
			Approved: rng.Intn(3) != 0,
		}
		if len(s.Projects) > 0 {
			expense.ProjectID = s.Projects[rng.Intn(len(s.Projects))].ID
		}
		s.Expenses = append(s.Expenses, expense)
	}

	// Slices stay non-nil even when a section generated nothing.
	if s.Incidents == nil {
		s.Incidents = []snapshot.Incident{}
	}

	s.ComputeSummary(now)
	return s, nil
}

// deterministicID draws a uuid from the seeded rng so generated ids are stable
// per company.
func deterministicID(rng *rand.Rand) string {
	var b [16]byte
	rng.Read(b[:])
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func seed(companyID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(companyID))
	return h.Sum64()
}
