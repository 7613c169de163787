package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/domain"
	"github.com/rpattn/portfolio-ingest/internal/ingestion"
	"github.com/rpattn/portfolio-ingest/internal/kpi"
)

const maxListedWarnings = 5

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -asof date %q: %w", raw, err)
	}
	return t, nil
}

func runMarkdown(fileName string, run ingestion.RunResult, snapshot kpi.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", fileName)
	fmt.Fprintf(&b, "Sheet **%s**, header on row %d.\n\n", run.SheetName, run.HeaderRowIndex+1)

	b.WriteString("| Rows | Created | Drafts | Discarded |\n|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", run.TotalRows, run.Created, run.Drafts, run.Discarded)

	writeWarnings(&b, run.Warnings)
	writeKPIs(&b, snapshot)

	if len(run.ColumnsUnmapped) > 0 {
		fmt.Fprintf(&b, "## Extra columns\n\n%s\n", strings.Join(run.ColumnsUnmapped, ", "))
	}
	return b.String()
}

func ingestMarkdown(result ingestion.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Version %s\n\n", result.Version.ID)
	fmt.Fprintf(&b, "Dataset **%s**, status `%s`.\n\n", result.Version.Dataset, result.Version.Status)

	b.WriteString("| Created | Drafts | Discarded | Added | Modified | Deleted |\n|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n\n",
		result.Created, result.Drafts, result.Discarded,
		result.Changes.Added, result.Changes.Modified, result.Changes.Deleted)

	writeWarnings(&b, result.Warnings)
	writeKPIs(&b, result.KPIs)
	return b.String()
}

func writeWarnings(b *strings.Builder, warnings []domain.RowWarning) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString("## Warnings\n\n")
	for idx, warning := range warnings {
		if idx == maxListedWarnings {
			fmt.Fprintf(b, "- … and %d more\n", len(warnings)-maxListedWarnings)
			break
		}
		if warning.Row > 0 {
			fmt.Fprintf(b, "- row %d `%s`: %s\n", warning.Row, warning.Kind, warning.Message)
		} else {
			fmt.Fprintf(b, "- `%s`: %s\n", warning.Kind, warning.Message)
		}
	}
	b.WriteString("\n")
}

func writeKPIs(b *strings.Builder, snapshot kpi.Snapshot) {
	fmt.Fprintf(b, "## KPIs as of %s\n\n", snapshot.AsOf)
	fmt.Fprintf(b, "- open %d, closed %d, drafts %d\n", snapshot.OpenProjects, snapshot.ClosedProjects, snapshot.DraftProjects)
	fmt.Fprintf(b, "- traffic lights: green %d, yellow %d, red %d, gray %d\n",
		snapshot.TrafficLights[kpi.LightGreen], snapshot.TrafficLights[kpi.LightYellow],
		snapshot.TrafficLights[kpi.LightRed], snapshot.TrafficLights[kpi.LightGray])
	if snapshot.OnTimeRate != nil {
		fmt.Fprintf(b, "- on-time delivery %.1f%% (%d/%d)\n", *snapshot.OnTimeRate, snapshot.OnTimeDelivered, snapshot.OnTimeEligible)
	}
	fmt.Fprintf(b, "- average completion %.1f%%\n\n", snapshot.AveragePercentComplete)

	if len(snapshot.StatusCounts) > 0 {
		statuses := make([]string, 0, len(snapshot.StatusCounts))
		for status := range snapshot.StatusCounts {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		b.WriteString("| Status | Projects |\n|---|---:|\n")
		for _, status := range statuses {
			fmt.Fprintf(b, "| %s | %d |\n", status, snapshot.StatusCounts[status])
		}
		b.WriteString("\n")
	}
}
