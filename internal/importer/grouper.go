package importer

import (
	"sort"
	"strconv"
	"strings"
)

// Hash32 is the polynomial rolling hash activity identifiers derive from.
// Determinism across runs is the point: the same file re-imported yields the
// same test IDs, which is what makes replication an upsert.
func Hash32(s string) uint32 {
	var h uint32
	for _, r := range s {
		h = h*31 + uint32(r)
	}
	return h
}

// HashKey renders Hash32 in base 36, the form used in record IDs.
func HashKey(s string) string {
	return strconv.FormatUint(uint64(Hash32(s)), 36)
}

// BaseKey builds the composite key that defines one logical assessment.
func BaseKey(rec NormalizedRecord) string {
	section := ""
	if rec.SectionID != nil {
		section = *rec.SectionID
	}
	parts := []string{
		string(rec.Type),
		NormalizeName(rec.SubjectName),
		rec.CourseID,
		section,
		rec.DayKey,
	}
	if rec.TitleHint != "" {
		parts = append(parts, NormalizeName(rec.TitleHint))
	}
	return strings.Join(parts, "|")
}

// TestID derives the persisted activity identifier for an occurrence.
// The first occurrence is the bare hash; repeats get an -i{k} suffix.
func TestID(baseKey string, occurrence int) string {
	id := HashKey(baseKey)
	if occurrence > 1 {
		id += "-i" + strconv.Itoa(occurrence)
	}
	return id
}

// BuildGroups buckets normalized records into activity occurrences. Within a
// base key each student's records are ordered by ascending timestamp and the
// k-th one joins occurrence k, so two same-day tests for the same students
// become two activities rather than one overwrite.
func BuildGroups(records []NormalizedRecord) []ActivityGroup {
	byKey := make(map[string][]NormalizedRecord)
	keyOrder := make([]string, 0)
	for _, rec := range records {
		key := BaseKey(rec)
		if _, seen := byKey[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		byKey[key] = append(byKey[key], rec)
	}

	groups := make([]ActivityGroup, 0, len(keyOrder))
	for _, key := range keyOrder {
		groups = append(groups, splitOccurrences(key, byKey[key])...)
	}
	return groups
}

func splitOccurrences(baseKey string, records []NormalizedRecord) []ActivityGroup {
	byStudent := make(map[string][]NormalizedRecord)
	for _, rec := range records {
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}

	maxOccurrence := 0
	occurrences := make(map[int][]NormalizedRecord)
	for student, list := range byStudent {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Timestamp.Before(list[j].Timestamp)
		})
		byStudent[student] = list
		for i, rec := range list {
			k := i + 1
			occurrences[k] = append(occurrences[k], rec)
			if k > maxOccurrence {
				maxOccurrence = k
			}
		}
	}

	groups := make([]ActivityGroup, 0, maxOccurrence)
	for k := 1; k <= maxOccurrence; k++ {
		recs := occurrences[k]
		sortForRepresentative(recs)
		groups = append(groups, ActivityGroup{
			BaseKey:    baseKey,
			Occurrence: k,
			TestID:     TestID(baseKey, k),
			Records:    recs,
		})
	}
	return groups
}

// Representative returns the record whose title/author hints denormalize
// onto the activity. The pick is deterministic: earliest timestamp, then
// smallest student ID, never incidental row order.
func (g ActivityGroup) Representative() NormalizedRecord {
	return g.Records[0]
}

func sortForRepresentative(recs []NormalizedRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		}
		return recs[i].StudentID < recs[j].StudentID
	})
}
