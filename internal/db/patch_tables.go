package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jonathan/vulture/internal/types"
)

// Patch application errors
var (
	ErrUnsupportedPatchTable     = errors.New("unsupported patch table")
	ErrUnsupportedPatchOperation = errors.New("unsupported patch operation")
	ErrUnsupportedPatchColumn    = errors.New("unsupported patch column")
	ErrPatchTargetMissing        = errors.New("patch target row does not exist")
)

type columnKind int

const (
	colText columnKind = iota
	colInt
	colFloat
	colBool
	colJSON
)

// patchColumns is the hard whitelist of patchable tables and their columns
var patchColumns = map[string]map[string]columnKind{
	types.PatchTablePersonal: {
		"first_name":      colText,
		"last_name":       colText,
		"email":           colText,
		"phone_e164":      colText,
		"headline":        colText,
		"current_company": colText,
	},
	types.PatchTablePreferences: {
		"employment_types":   colJSON,
		"remote_pref":        colText,
		"relocation_pref":    colText,
		"travel_pct":         colInt,
		"notice_period_days": colInt,
		"salary_currency":    colText,
		"salary_min":         colInt,
		"salary_max":         colInt,
	},
	types.PatchTableWorkAuth: {
		"authorized_countries": colJSON,
		"needs_sponsorship":    colBool,
		"visa_status":          colText,
		"clearance_level":      colText,
	},
	types.PatchTableSkills: {
		"name":           colText,
		"category":       colText,
		"years":          colFloat,
		"proficiency":    colText,
		"last_used_year": colInt,
	},
}

// PatchTarget is a patch operation checked against the whitelist, with every
// value coerced to its column type.
type PatchTarget struct {
	Table  string
	Op     string
	Key    map[string]any
	Values map[string]any
}

// KeyColumns returns the key columns in sorted order.
func (t *PatchTarget) KeyColumns() []string {
	return sortedColumns(t.Key)
}

// ValueColumns returns the value columns in sorted order.
func (t *PatchTarget) ValueColumns() []string {
	return sortedColumns(t.Values)
}

// InsertRow returns key and values merged; values win on overlap.
func (t *PatchTarget) InsertRow() map[string]any {
	row := make(map[string]any, len(t.Key)+len(t.Values))
	for k, v := range t.Key {
		row[k] = v
	}
	for k, v := range t.Values {
		row[k] = v
	}
	return row
}

// ResolvePatchOperation validates op against the whitelist. Any profile_id in the
// key is dropped because the owning profile always scopes the lookup.
func ResolvePatchOperation(op types.PatchOperation) (*PatchTarget, error) {
	columns, ok := patchColumns[op.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPatchTable, op.Table)
	}
	switch op.Op {
	case types.PatchOpInsert, types.PatchOpUpdate, types.PatchOpUpsert:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPatchOperation, op.Op)
	}

	key, err := coerceColumns(op.Table, columns, op.Key)
	if err != nil {
		return nil, err
	}
	values, err := coerceColumns(op.Table, columns, op.Values)
	if err != nil {
		return nil, err
	}
	return &PatchTarget{Table: op.Table, Op: op.Op, Key: key, Values: values}, nil
}

// IsPatchTable reports whether table is on the whitelist.
func IsPatchTable(table string) bool {
	_, ok := patchColumns[table]
	return ok
}

func coerceColumns(table string, columns map[string]columnKind, in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for col, v := range in {
		if col == "profile_id" || col == "id" {
			continue
		}
		kind, ok := columns[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnsupportedPatchColumn, table, col)
		}
		cv, err := coerceValue(kind, v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s.%s: %w", table, col, err)
		}
		out[col] = cv
	}
	return out, nil
}

func coerceValue(kind columnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case colText:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64, int, int64, bool:
			return fmt.Sprint(x), nil
		}
	case colInt:
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) {
				return nil, fmt.Errorf("expected integer, got %v", x)
			}
			return int64(x), nil
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		}
	case colFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
	case colBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case colJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	}
	return nil, fmt.Errorf("unexpected value type %T", v)
}

func sortedColumns(m map[string]any) []string {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// -----------------------------------------------------------------------------
// Profile sub-records as patch rows
// -----------------------------------------------------------------------------

// ProfileSeedOperations turns the sub-records of a new profile into upsert
// operations, so profile creation goes through the same whitelist as patches.
func ProfileSeedOperations(req *types.CreateProfileRequest) []types.PatchOperation {
	var ops []types.PatchOperation
	seed := func(table string, key, values map[string]any) {
		ops = append(ops, types.PatchOperation{
			Table: table, Op: types.PatchOpUpsert, Key: key, Values: values,
			Source: "profile_create", Confidence: 1,
		})
	}

	if p := req.Personal; p != nil {
		seed(types.PatchTablePersonal, map[string]any{}, map[string]any{
			"first_name":      p.FirstName,
			"last_name":       p.LastName,
			"email":           p.Email,
			"phone_e164":      p.PhoneE164,
			"headline":        p.Headline,
			"current_company": p.CurrentCompany,
		})
	}
	if p := req.Preferences; p != nil {
		values := map[string]any{
			"employment_types": p.EmploymentTypes,
			"remote_pref":      p.RemotePref,
			"relocation_pref":  p.RelocationPref,
			"salary_currency":  p.SalaryCurrency,
		}
		putInt(values, "travel_pct", p.TravelPct)
		putInt(values, "notice_period_days", p.NoticePeriodDays)
		putInt(values, "salary_min", p.SalaryMin)
		putInt(values, "salary_max", p.SalaryMax)
		seed(types.PatchTablePreferences, map[string]any{}, values)
	}
	if w := req.WorkAuth; w != nil {
		seed(types.PatchTableWorkAuth, map[string]any{}, map[string]any{
			"authorized_countries": w.AuthorizedCountries,
			"needs_sponsorship":    w.NeedsSponsorship,
			"visa_status":          w.VisaStatus,
			"clearance_level":      w.ClearanceLevel,
		})
	}
	for _, s := range req.Skills {
		values := map[string]any{
			"category":    s.Category,
			"proficiency": s.Proficiency,
		}
		if s.Years != nil {
			values["years"] = *s.Years
		}
		putInt(values, "last_used_year", s.LastUsedYear)
		seed(types.PatchTableSkills, map[string]any{"name": s.Name}, values)
	}
	return ops
}

func putInt(m map[string]any, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}
