package db

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonathan/vulture/internal/types"
)

// FactsFromRows assembles profile facts from generic sub-table rows. Rows may come
// from pgx.RowToMap or from the in-memory store, so numeric and JSON values are
// accepted in any of their decoded forms.
func FactsFromRows(p *Profile, personal, prefs, workAuth map[string]any, skills []map[string]any) *types.ProfileFacts {
	facts := &types.ProfileFacts{
		ID:        p.ID,
		Name:      p.Name,
		JobFamily: p.JobFamily,
		Summary:   p.Summary,
		Skills:    []types.Skill{},
		CreatedAt: p.CreatedAt,
	}

	if personal != nil {
		facts.Personal = &types.PersonalInfo{
			FirstName:      asString(personal["first_name"]),
			LastName:       asString(personal["last_name"]),
			Email:          asString(personal["email"]),
			PhoneE164:      asString(personal["phone_e164"]),
			Headline:       asString(personal["headline"]),
			CurrentCompany: asString(personal["current_company"]),
		}
	}
	if prefs != nil {
		facts.Preferences = &types.ProfilePreferences{
			EmploymentTypes:  asStrings(prefs["employment_types"]),
			RemotePref:       asString(prefs["remote_pref"]),
			RelocationPref:   asString(prefs["relocation_pref"]),
			TravelPct:        asIntPtr(prefs["travel_pct"]),
			NoticePeriodDays: asIntPtr(prefs["notice_period_days"]),
			SalaryCurrency:   asString(prefs["salary_currency"]),
			SalaryMin:        asIntPtr(prefs["salary_min"]),
			SalaryMax:        asIntPtr(prefs["salary_max"]),
		}
	}
	if workAuth != nil {
		needs, _ := workAuth["needs_sponsorship"].(bool)
		facts.WorkAuth = &types.WorkAuthorization{
			AuthorizedCountries: asStrings(workAuth["authorized_countries"]),
			NeedsSponsorship:    needs,
			VisaStatus:          asString(workAuth["visa_status"]),
			ClearanceLevel:      asString(workAuth["clearance_level"]),
		}
	}

	for _, row := range skills {
		facts.Skills = append(facts.Skills, types.Skill{
			Name:         asString(row["name"]),
			Category:     asString(row["category"]),
			Years:        asFloatPtr(row["years"]),
			Proficiency:  asString(row["proficiency"]),
			LastUsedYear: asIntPtr(row["last_used_year"]),
		})
	}
	sort.Slice(facts.Skills, func(i, j int) bool { return facts.Skills[i].Name < facts.Skills[j].Name })

	return facts
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func asIntPtr(v any) *int {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	default:
		return nil
	}
	return &n
}

func asFloatPtr(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	default:
		return nil
	}
	return &f
}

func asStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, asString(item))
		}
		return out
	case json.RawMessage:
		var out []string
		if err := json.Unmarshal(x, &out); err == nil {
			return out
		}
	case []byte:
		var out []string
		if err := json.Unmarshal(x, &out); err == nil {
			return out
		}
	}
	return nil
}
