// Package schema declares the static per-column type policy for the managed
// record set and the normalizer that coerces raw form or CSV input into
// typed snapshots.
package schema

import "pumpcore/pkg/domain"

// Policy is the semantic type class a column is declared to hold.
type Policy string

const (
	PolicyInteger Policy = "integer"
	PolicyReal    Policy = "real"
	PolicyText    Policy = "text"
)

// PolicyTable maps column names to their declared policy. Columns absent
// from the table default to PolicyText.
type PolicyTable map[string]Policy

// PolicyFor returns the declared policy for a column, defaulting to text.
func (t PolicyTable) PolicyFor(column string) Policy {
	if p, ok := t[column]; ok {
		return p
	}
	return PolicyText
}

// PumpSelectionTable is the logical record set managed by this service.
const PumpSelectionTable = "pump_selection_data"

// PumpSelectionPolicies is the fixed policy table for pump_selection_data.
// The identifier column is intentionally absent: it is allocator-assigned
// and never normalized from user input.
var PumpSelectionPolicies = PolicyTable{
	"Frequency (Hz)":      PolicyInteger,
	"Phase":               PolicyInteger,
	"Outlet (mm)":         PolicyInteger,
	"Pass Solid Dia(mm)":  PolicyInteger,
	"Max Head (M)":        PolicyReal,
	"Head Rated/M":        PolicyReal,
	"Q Rated/LPM":         PolicyReal,
	"Model No.":           PolicyText,
	"Brand":               PolicyText,
	"Series":              PolicyText,
	"HP":                  PolicyText,
	"Power(KW)":           PolicyText,
	"Pump Type":           PolicyText,
	"Remarks":             PolicyText,
}

// RequiredTextField is the record's primary text identifier; inserts without
// it fail validation.
const RequiredTextField = "Model No."

// Reserved reports whether a column may never be set from user input.
func Reserved(column string) bool { return column == domain.RecordIDField }
