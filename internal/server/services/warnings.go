package services

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
)

// Workflow steps that may fail without failing the workflow.
const (
	StepFetchUser        = "fetch_user"
	StepWriteCredential  = "write_credential"
	StepDeleteCredential = "delete_credential"
	StepPublishEvent     = "publish_event"
	StepStartService     = "start_service"
	StepActivateTenant   = "activate_tenant"
)

// Warning is one failed secondary step. Item names what it was about: an
// access key, a uid or an event type.
type Warning struct {
	Item    string `json:"item"`
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Warnings accompanies a successful result whose secondary steps partly
// failed.
type Warnings []Warning

func (w *Warnings) add(item, step string, err error) {
	*w = append(*w, Warning{Item: item, Step: step, Message: err.Error()})
}

// Err returns nil when there are no warnings, otherwise an error wrapping
// common.ErrorPartialFailure.
func (w Warnings) Err() error {
	if len(w) == 0 {
		return nil
	}
	parts := make([]string, 0, len(w))
	for _, x := range w {
		parts = append(parts, fmt.Sprintf("%s %s: %s", x.Step, x.Item, x.Message))
	}
	return fmt.Errorf("%w: %s", common.ErrorPartialFailure, strings.Join(parts, "; "))
}

// Items lists the items of warnings for step.
func (w Warnings) Items(step string) []string {
	var out []string
	for _, x := range w {
		if x.Step == step {
			out = append(out, x.Item)
		}
	}
	return out
}
