package cvparse

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/models"
)

// Record converts parsed sections into the cv_sections row for cvID.
func (s Sections) Record(cvID, rawText string, now time.Time) (*models.CVSections, error) {
	cols := make([]datatypes.JSON, 4)
	for i, v := range []any{orEmpty(s.Skills), orEmpty(s.Experience), orEmpty(s.Education), orEmpty(s.Certifications)} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		cols[i] = b
	}
	return &models.CVSections{
		ID:             uuid.NewString(),
		CVID:           cvID,
		Summary:        s.Summary,
		Skills:         cols[0],
		Experience:     cols[1],
		Education:      cols[2],
		Certifications: cols[3],
		RawText:        rawText,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// FromRecord reads a cv_sections row back; malformed JSON columns decode as empty.
func FromRecord(r *models.CVSections) Sections {
	s := Sections{Summary: r.Summary}
	_ = json.Unmarshal(r.Skills, &s.Skills)
	_ = json.Unmarshal(r.Experience, &s.Experience)
	_ = json.Unmarshal(r.Education, &s.Education)
	_ = json.Unmarshal(r.Certifications, &s.Certifications)
	return s
}

// FactsFromProfile prefers the stored fact sheet and falls back to the sections.
func FactsFromProfile(p *models.CVProfile, sections *models.CVSections) matcher.CVFacts {
	if p != nil && len(p.Facts) > 0 {
		var f matcher.CVFacts
		if err := json.Unmarshal(p.Facts, &f); err == nil {
			return f
		}
	}
	if sections == nil {
		return matcher.CVFacts{}
	}
	return FactsFromSections(FromRecord(sections))
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
