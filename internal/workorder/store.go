// Package workorder provides read-only lookups of work order reference
// records. Work orders seed a new traveler's fields and process steps; the
// lifecycle manager reads them but never writes them.
package workorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nexusmfg/traveler/model"
)

// Store looks up work orders.
type Store interface {
	// GetByNumber retrieves an active work order by its work order number.
	// Returns NOT_FOUND if absent or inactive.
	GetByNumber(ctx context.Context, number string) (model.WorkOrder, error)

	// List returns all active work orders ordered by work order number.
	List(ctx context.Context) ([]model.WorkOrder, error)
}

// TemplateSteps decodes the work order's serialized process template.
// An empty template yields nil.
func TemplateSteps(wo model.WorkOrder) ([]model.StepInput, error) {
	if wo.ProcessTemplate == "" {
		return nil, nil
	}
	var steps []model.StepInput
	if err := json.Unmarshal([]byte(wo.ProcessTemplate), &steps); err != nil {
		return nil, fmt.Errorf("decode process template for work order %q: %w", wo.WorkOrderNumber, err)
	}
	return steps, nil
}
