// Package ats scores resume data for applicant-tracking-system compatibility.
package ats

import (
	"math"
	"strings"
	"time"
)

const (
	weightSkills     = 0.30
	weightExperience = 0.30
	weightSummary    = 0.15
	weightStructure  = 0.25

	// structureDenominator is fixed; a resume with 8 of the checklist fields scores 100.
	structureDenominator = 8

	yearMillis = 365.25 * 24 * 60 * 60 * 1000
)

var structureFields = []string{
	"name",
	"email",
	"phone",
	"summary",
	"objective",
	"professionalSummary",
	"skills",
	"experience",
	"workExperience",
	"education",
	"certifications",
	"certificates",
	"projects",
}

var endDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01",
	"2006",
	"Jan 2006",
	"January 2006",
	"01/2006",
	"01/02/2006",
}

// Breakdown holds the four sub-scores, each in [0,100].
type Breakdown struct {
	Skills     int `json:"skills"`
	Experience int `json:"experience"`
	Summary    int `json:"summary"`
	Structure  int `json:"structure"`
}

// Result is a complete ATS score. It is only ever built with all four components computed.
type Result struct {
	Total     int       `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
}

// Score computes the ATS score of resume data as of now.
func Score(data map[string]any) Result {
	return ScoreAt(data, time.Now())
}

// ScoreAt computes the ATS score using now as the reference for experience recency.
func ScoreAt(data map[string]any, now time.Time) Result {
	b := Breakdown{
		Skills:     scoreSkills(data),
		Experience: scoreExperience(data, now),
		Summary:    scoreSummary(data),
		Structure:  scoreStructure(data),
	}
	// Explicit conversions keep each product rounded before the sum so results match across platforms.
	weighted := float64(float64(b.Skills)*weightSkills) +
		float64(float64(b.Experience)*weightExperience) +
		float64(float64(b.Summary)*weightSummary) +
		float64(float64(b.Structure)*weightStructure)
	return Result{Total: roundHalfUp(weighted), Breakdown: b}
}

func scoreSkills(data map[string]any) int {
	skills, ok := data["skills"].([]any)
	if !ok || len(skills) == 0 {
		return 0
	}
	count := 0
	for _, s := range skills {
		switch v := s.(type) {
		case string:
			if v != "" {
				count++
			}
		case map[string]any:
			if name, ok := v["name"].(string); ok && name != "" {
				count++
			}
		}
	}
	switch {
	case count >= 12:
		return 100
	case count >= 8:
		return 85
	case count >= 5:
		return 70
	case count >= 3:
		return 50
	default:
		return 30
	}
}

func scoreExperience(data map[string]any, now time.Time) int {
	raw := firstPresent(data, "experience", "workExperience")
	roles, ok := raw.([]any)
	if !ok || len(roles) == 0 {
		return 0
	}

	score := min(len(roles)*15, 45)

	bullets := 0
	for _, r := range roles {
		role, ok := r.(map[string]any)
		if !ok {
			continue
		}
		bullets += bulletCount(firstPresent(role, "bullets", "highlights", "description"))
	}
	score += min(bullets*5, 35)

	// A most recent entry without an end date, including one that is not an
	// object at all, counts as a current role.
	switch recent := roles[0].(type) {
	case map[string]any:
		score += recencyBonus(recent, now)
	default:
		if truthy(recent) {
			score += 20
		}
	}
	return min(score, 100)
}

func bulletCount(v any) int {
	if b, ok := v.([]any); ok {
		return len(b)
	}
	if truthy(v) {
		return 1
	}
	return 0
}

// truthy reports whether a decoded JSON value is set: anything except null,
// false, zero and the empty string.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case string:
		return b != ""
	case bool:
		return b
	case float64:
		return b != 0
	default:
		return true
	}
}

func recencyBonus(role map[string]any, now time.Time) int {
	end, _ := firstPresent(role, "endDate", "end").(string)
	if end == "" || strings.ToLower(end) == "present" {
		return 20
	}
	ended, ok := parseEndDate(end)
	if !ok {
		return 0
	}
	yearsAgo := float64(now.Sub(ended).Milliseconds()) / yearMillis
	switch {
	case yearsAgo <= 2:
		return 15
	case yearsAgo <= 5:
		return 10
	default:
		return 0
	}
}

func parseEndDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func scoreSummary(data map[string]any) int {
	text, ok := firstPresent(data, "summary", "objective", "professionalSummary").(string)
	if !ok || text == "" {
		return 0
	}
	words := max(len(strings.Fields(text)), 1)
	switch {
	case words >= 40 && words <= 80:
		return 100
	case words >= 25:
		return 80
	case words >= 15:
		return 60
	case words >= 5:
		return 35
	default:
		return 15
	}
}

func scoreStructure(data map[string]any) int {
	present := 0
	for _, key := range structureFields {
		if effectivelyPresent(data[key]) {
			present++
		}
	}
	return min(roundHalfUp(float64(present)/structureDenominator*100), 100)
}

func effectivelyPresent(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []any:
		return len(val) > 0
	default:
		return true
	}
}

// firstPresent returns the first value that is set and not null.
func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
