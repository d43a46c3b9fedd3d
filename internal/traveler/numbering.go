package traveler

import (
	"fmt"
	"strings"
	"time"

	"github.com/nexusmfg/traveler/model"
)

// typeCodes are the short codes embedded in traveler numbers.
var typeCodes = map[model.TravelerType]string{
	model.TypePCB:        "PCB",
	model.TypeAssembly:   "ASSY",
	model.TypeCable:      "CBL",
	model.TypeCableAssy:  "CA",
	model.TypeMechanical: "MECH",
	model.TypeTest:       "TEST",
}

// TypeCode returns the short code for a traveler type, falling back to the
// type itself for values not in the table.
func TypeCode(t model.TravelerType) string {
	if code, ok := typeCodes[t]; ok {
		return code
	}
	return string(t)
}

// FormatNumber builds a traveler number from its parts:
// {identifier}-{typeCode}-{MMDD}-{seq}, e.g. "J1042-PCB-0901-0007".
// The identifier is the job or work-order number with whitespace stripped.
func FormatNumber(identifier string, t model.TravelerType, now time.Time, seq int64) string {
	identifier = strings.Join(strings.Fields(identifier), "")
	return fmt.Sprintf("%s-%s-%s-%04d", identifier, TypeCode(t), now.Format("0102"), seq)
}

// sequenceKey scopes the counter per identifier and type so distinct jobs
// each start at 1.
func sequenceKey(identifier string, t model.TravelerType) string {
	return fmt.Sprintf("traveler:%s:%s", identifier, TypeCode(t))
}
