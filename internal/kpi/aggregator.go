// Package kpi derives portfolio rollups from a version's record set.
// Nothing here is a source of truth: every value can be recomputed from
// the records and the as-of date alone.
package kpi

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/domain"
)

// Light is the traffic-light classification of a project.
type Light string

const (
	LightGreen  Light = "green"
	LightYellow Light = "yellow"
	LightRed    Light = "red"
	LightGray   Light = "gray"
)

const (
	// DefaultDueSoonDays is the window in which an open project turns yellow.
	DefaultDueSoonDays = 7
	// DefaultTopDepartments bounds the department breakdown.
	DefaultTopDepartments = 10

	noDepartment = "Sin departamento"
	noStatus     = "Sin estado"
)

var closedStatuses = map[string]struct{}{
	"cerrado":    {},
	"cerrada":    {},
	"closed":     {},
	"completado": {},
	"completada": {},
	"completed":  {},
	"terminado":  {},
	"terminada":  {},
	"finalizado": {},
	"finalizada": {},
	"done":       {},
	"entregado":  {},
	"entregada":  {},
}

// Options tunes the aggregation.
type Options struct {
	DueSoonDays    int
	TopDepartments int
}

// DepartmentCount is one entry of the department breakdown.
type DepartmentCount struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// Snapshot holds the recomputed KPIs of one record set.
type Snapshot struct {
	AsOf                   string            `json:"asOf"`
	TotalProjects          int               `json:"totalProjects"`
	OpenProjects           int               `json:"openProjects"`
	ClosedProjects         int               `json:"closedProjects"`
	DraftProjects          int               `json:"draftProjects"`
	StatusCounts           map[string]int    `json:"statusCounts"`
	Departments            []DepartmentCount `json:"departments"`
	TrafficLights          map[Light]int     `json:"trafficLights"`
	OnTimeEligible         int               `json:"onTimeEligible"`
	OnTimeDelivered        int               `json:"onTimeDelivered"`
	OnTimeRate             *float64          `json:"onTimeRate"`
	AveragePercentComplete float64           `json:"averagePercentComplete"`
}

// IsClosed reports whether a record's status is in the closed vocabulary.
func IsClosed(record domain.ParsedProjectRecord) bool {
	_, ok := closedStatuses[strings.ToLower(strings.TrimSpace(statusOf(record)))]
	return ok
}

func statusOf(record domain.ParsedProjectRecord) string {
	if record.Status != "" {
		return record.Status
	}
	if record.ParsedStatus != nil {
		return *record.ParsedStatus
	}
	return ""
}

// Classify returns the traffic light of one record as of a date.
func Classify(record domain.ParsedProjectRecord, asOf time.Time, dueSoonDays int) Light {
	if IsClosed(record) {
		return LightGreen
	}
	due := record.EndDateEstimated
	if due.TBD || due.Date == nil {
		return LightGray
	}

	today := truncateDay(asOf)
	deadline := truncateDay(*due.Date)
	if deadline.Before(today) {
		return LightRed
	}
	if !deadline.After(today.AddDate(0, 0, dueSoonDays)) {
		return LightYellow
	}
	return LightGreen
}

// Aggregate computes the KPI snapshot of a record set.
func Aggregate(records []domain.ParsedProjectRecord, asOf time.Time, opts Options) Snapshot {
	if opts.DueSoonDays <= 0 {
		opts.DueSoonDays = DefaultDueSoonDays
	}
	if opts.TopDepartments <= 0 {
		opts.TopDepartments = DefaultTopDepartments
	}

	snapshot := Snapshot{
		AsOf:          truncateDay(asOf).Format(domain.DateLayout),
		TotalProjects: len(records),
		StatusCounts:  map[string]int{},
		Departments:   []DepartmentCount{},
		TrafficLights: map[Light]int{LightGreen: 0, LightYellow: 0, LightRed: 0, LightGray: 0},
	}

	departments := map[string]int{}
	percentTotal := 0
	for _, record := range records {
		status := strings.TrimSpace(statusOf(record))
		if status == "" {
			status = noStatus
		}
		snapshot.StatusCounts[status]++

		if IsClosed(record) {
			snapshot.ClosedProjects++
			if record.EndDateActual.Date != nil && record.EndDateEstimated.Date != nil {
				snapshot.OnTimeEligible++
				if !record.EndDateActual.Date.After(*record.EndDateEstimated.Date) {
					snapshot.OnTimeDelivered++
				}
			}
		} else {
			snapshot.OpenProjects++
		}
		if record.IsDraftIncomplete {
			snapshot.DraftProjects++
		}

		department := strings.TrimSpace(record.DepartmentName)
		if department == "" {
			department = noDepartment
		}
		departments[department]++

		snapshot.TrafficLights[Classify(record, asOf, opts.DueSoonDays)]++
		percentTotal += record.PercentComplete
	}

	if snapshot.OnTimeEligible > 0 {
		rate := round1(float64(snapshot.OnTimeDelivered) * 100 / float64(snapshot.OnTimeEligible))
		snapshot.OnTimeRate = &rate
	}
	if len(records) > 0 {
		snapshot.AveragePercentComplete = round1(float64(percentTotal) / float64(len(records)))
	}

	snapshot.Departments = topDepartments(departments, opts.TopDepartments)
	return snapshot
}

func topDepartments(counts map[string]int, limit int) []DepartmentCount {
	out := make([]DepartmentCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, DepartmentCount{Department: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Department < out[j].Department
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
