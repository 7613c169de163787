// Package versioning matches records across uploads and computes the
// field-level change log between two versions.
package versioning

import (
	"fmt"

	"github.com/rpattn/portfolio-ingest/internal/domain"
)

// Match pairs a new record with the stored record it replaces, if any.
type Match struct {
	Key      string
	Record   domain.ParsedProjectRecord
	Previous *domain.StoredProject
}

// IdentityKeys assigns each record its identity key: the legacy id, with
// an occurrence suffix for repeated ids so keys stay unique within a run.
// Suffixes skip any key a record in the run already carries as its own id,
// so A, A, A#2 yields A, A#3, A#2. Records without a durable id already
// carry their synthetic ROW-<n> id, so they match positionally.
func IdentityKeys(records []domain.ParsedProjectRecord) []string {
	taken := make(map[string]bool, len(records))
	for _, record := range records {
		taken[record.LegacyID] = true
	}

	keys := make([]string, len(records))
	claimed := make(map[string]bool, len(records))
	counts := make(map[string]int, len(records))
	for idx, record := range records {
		base := record.LegacyID
		if !claimed[base] {
			claimed[base] = true
			keys[idx] = base
			continue
		}

		count := counts[base]
		if count == 0 {
			count = 1
		}
		key := base
		for taken[key] || claimed[key] {
			count++
			key = fmt.Sprintf("%s#%d", base, count)
		}
		counts[base] = count
		claimed[key] = true
		keys[idx] = key
	}
	return keys
}

// Resolve maps every new record onto the previous version's record with the
// same identity key. Unmatched records are new. A project whose durable id
// was dropped between uploads resolves as a new record and its old entry
// shows up as deleted; intent is not guessed.
func Resolve(records []domain.ParsedProjectRecord, previous []domain.StoredProject) []Match {
	byKey := make(map[string]*domain.StoredProject, len(previous))
	for idx := range previous {
		if _, exists := byKey[previous[idx].IdentityKey]; !exists {
			byKey[previous[idx].IdentityKey] = &previous[idx]
		}
	}

	keys := IdentityKeys(records)
	matches := make([]Match, len(records))
	for idx, record := range records {
		matches[idx] = Match{
			Key:      keys[idx],
			Record:   record,
			Previous: byKey[keys[idx]],
		}
	}
	return matches
}

// StoredProjects converts matches into the rows persisted for a version.
func StoredProjects(version domain.Version, matches []Match) []domain.StoredProject {
	stored := make([]domain.StoredProject, len(matches))
	for idx, match := range matches {
		stored[idx] = domain.StoredProject{
			VersionID:   version.ID,
			Position:    idx,
			IdentityKey: match.Key,
			Record:      match.Record,
		}
	}
	return stored
}
