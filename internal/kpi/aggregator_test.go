package kpi

import (
	"testing"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/google/go-cmp/cmp"
)

var asOf = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

func day(year int, month time.Month, d int) domain.DateValue {
	t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	return domain.DateValue{Date: &t, Original: t.Format(domain.DateLayout)}
}

func portfolio() []domain.ParsedProjectRecord {
	parsedClosed := "cerrada"
	return []domain.ParsedProjectRecord{
		{LegacyID: "1", Status: "Cerrado", DepartmentName: "TI", PercentComplete: 100,
			EndDateEstimated: day(2024, 2, 28), EndDateActual: day(2024, 2, 20)},
		{LegacyID: "2", Status: "Closed", DepartmentName: "TI", PercentComplete: 100,
			EndDateEstimated: day(2024, 1, 31), EndDateActual: day(2024, 2, 10)},
		{LegacyID: "3", Status: "En curso", DepartmentName: "Ventas", PercentComplete: 40,
			EndDateEstimated: day(2024, 2, 15)},
		{LegacyID: "4", Status: "En curso", DepartmentName: "TI", PercentComplete: 80,
			EndDateEstimated: day(2024, 3, 5)},
		{LegacyID: "5", Status: "En curso", DepartmentName: "Ventas", PercentComplete: 60,
			EndDateEstimated: day(2024, 5, 1)},
		{LegacyID: "6", Status: "En curso", IsDraftIncomplete: true,
			EndDateEstimated: domain.DateValue{TBD: true, Original: "TBD"}},
		{LegacyID: "7", ParsedStatus: &parsedClosed, DepartmentName: "Finanzas", PercentComplete: 100},
	}
}

func TestAggregate(t *testing.T) {
	snapshot := Aggregate(portfolio(), asOf, Options{})

	if snapshot.AsOf != "2024-03-01" {
		t.Fatalf("unexpected as-of %q", snapshot.AsOf)
	}
	if snapshot.TotalProjects != 7 || snapshot.OpenProjects != 4 || snapshot.ClosedProjects != 3 || snapshot.DraftProjects != 1 {
		t.Fatalf("unexpected totals %+v", snapshot)
	}

	wantLights := map[Light]int{LightGreen: 4, LightYellow: 1, LightRed: 1, LightGray: 1}
	if diff := cmp.Diff(wantLights, snapshot.TrafficLights); diff != "" {
		t.Fatalf("unexpected traffic lights (-want +got):\n%s", diff)
	}

	wantStatuses := map[string]int{"Cerrado": 1, "Closed": 1, "En curso": 4, "cerrada": 1}
	if diff := cmp.Diff(wantStatuses, snapshot.StatusCounts); diff != "" {
		t.Fatalf("unexpected status counts (-want +got):\n%s", diff)
	}

	wantDepartments := []DepartmentCount{
		{Department: "TI", Count: 3},
		{Department: "Ventas", Count: 2},
		{Department: "Finanzas", Count: 1},
		{Department: "Sin departamento", Count: 1},
	}
	if diff := cmp.Diff(wantDepartments, snapshot.Departments); diff != "" {
		t.Fatalf("unexpected departments (-want +got):\n%s", diff)
	}

	if snapshot.OnTimeEligible != 2 || snapshot.OnTimeDelivered != 1 {
		t.Fatalf("unexpected on-time counts %d/%d", snapshot.OnTimeDelivered, snapshot.OnTimeEligible)
	}
	if snapshot.OnTimeRate == nil || *snapshot.OnTimeRate != 50 {
		t.Fatalf("expected 50%% on-time rate, got %v", snapshot.OnTimeRate)
	}
	if snapshot.AveragePercentComplete != 68.6 {
		t.Fatalf("expected average 68.6, got %v", snapshot.AveragePercentComplete)
	}
}

func TestAggregateEmpty(t *testing.T) {
	snapshot := Aggregate(nil, asOf, Options{})

	if snapshot.TotalProjects != 0 || snapshot.OnTimeRate != nil || snapshot.AveragePercentComplete != 0 {
		t.Fatalf("unexpected empty snapshot %+v", snapshot)
	}
	if len(snapshot.TrafficLights) != 4 {
		t.Fatalf("expected every light to be reported, got %v", snapshot.TrafficLights)
	}
}

func TestAggregateLimitsDepartments(t *testing.T) {
	snapshot := Aggregate(portfolio(), asOf, Options{TopDepartments: 2})
	if len(snapshot.Departments) != 2 || snapshot.Departments[1].Department != "Ventas" {
		t.Fatalf("unexpected departments %+v", snapshot.Departments)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		due  domain.DateValue
		want Light
	}{
		{due: day(2024, 3, 1), want: LightYellow},
		{due: day(2024, 3, 8), want: LightYellow},
		{due: day(2024, 3, 9), want: LightGreen},
		{due: day(2024, 2, 29), want: LightRed},
		{due: domain.DateValue{Original: "pronto", Invalid: true}, want: LightGray},
	}
	for _, tc := range cases {
		record := domain.ParsedProjectRecord{Status: "En curso", EndDateEstimated: tc.due}
		if got := Classify(record, asOf, DefaultDueSoonDays); got != tc.want {
			t.Errorf("Classify(due %q) = %s, want %s", tc.due.Original, got, tc.want)
		}
	}
}

func TestIsClosedIgnoresCaseAndSpacing(t *testing.T) {
	if !IsClosed(domain.ParsedProjectRecord{Status: "  FINALIZADO "}) {
		t.Fatalf("expected FINALIZADO to be closed")
	}
	if IsClosed(domain.ParsedProjectRecord{Status: "En pausa"}) {
		t.Fatalf("did not expect En pausa to be closed")
	}
}
