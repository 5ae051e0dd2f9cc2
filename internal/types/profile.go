package types

import (
	"time"

	"github.com/google/uuid"
)

// ProfileFacts is the read model of a candidate profile handed to the LLM router
type ProfileFacts struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	JobFamily   string              `json:"job_family"`
	Summary     string              `json:"summary"`
	Personal    *PersonalInfo       `json:"personal,omitempty"`
	Preferences *ProfilePreferences `json:"preferences,omitempty"`
	WorkAuth    *WorkAuthorization  `json:"work_auth,omitempty"`
	Skills      []Skill             `json:"skills"`
	CreatedAt   time.Time           `json:"created_at"`
}

// PersonalInfo mirrors the profile_personal table
type PersonalInfo struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	PhoneE164      string `json:"phone_e164"`
	Headline       string `json:"headline"`
	CurrentCompany string `json:"current_company"`
}

// ProfilePreferences mirrors the profile_preferences table
type ProfilePreferences struct {
	EmploymentTypes  []string `json:"employment_types"`
	RemotePref       string   `json:"remote_pref"`
	RelocationPref   string   `json:"relocation_pref"`
	TravelPct        *int     `json:"travel_pct,omitempty"`
	NoticePeriodDays *int     `json:"notice_period_days,omitempty"`
	SalaryCurrency   string   `json:"salary_currency"`
	SalaryMin        *int     `json:"salary_min,omitempty"`
	SalaryMax        *int     `json:"salary_max,omitempty"`
}

// WorkAuthorization mirrors the profile_work_auth table
type WorkAuthorization struct {
	AuthorizedCountries []string `json:"authorized_countries"`
	NeedsSponsorship    bool     `json:"needs_sponsorship"`
	VisaStatus          string   `json:"visa_status"`
	ClearanceLevel      string   `json:"clearance_level"`
}

// Skill mirrors one row of the skills table
type Skill struct {
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Years        *float64 `json:"years,omitempty"`
	Proficiency  string   `json:"proficiency"`
	LastUsedYear *int     `json:"last_used_year,omitempty"`
}

// DisplayName returns the best human-readable name for the profile.
func (p *ProfileFacts) DisplayName() string {
	if p.Personal != nil && (p.Personal.FirstName != "" || p.Personal.LastName != "") {
		name := p.Personal.FirstName
		if p.Personal.LastName != "" {
			if name != "" {
				name += " "
			}
			name += p.Personal.LastName
		}
		return name
	}
	if p.Name != "" {
		return p.Name
	}
	return "Candidate"
}
