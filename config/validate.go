package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/stepflow-io/stepflow/internal/schema"
	"github.com/stepflow-io/stepflow/perr"
)

const (
	ErrorCodeUnknownSetting = "error_unknown_setting"
)

var validate = validator.New()

// ValidateUpdate rejects structurally invalid updates and updates that use
// setting keys outside the recognized namespace. Runs before every merge.
func ValidateUpdate(update *StepConfigUpdate) error {
	if update == nil {
		return nil
	}

	if err := validate.Struct(update); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return perr.ValidationError{Type: "step_config_update", Errors: validationErrors}
		}
		return perr.Internal(err)
	}

	return ValidateSettingKeys(update.Settings)
}

// ValidateSettingKeys checks every settings key against the recognized
// setting-key namespace.
func ValidateSettingKeys(settings map[string]map[string]any) error {
	var unknown []string
	for key := range settings {
		if !schema.IsValidSettingKey(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return perr.BadRequestWithTypeAndMessage(ErrorCodeUnknownSetting,
		fmt.Sprintf("unknown setting key(s) %s, settings must use a recognized general or component-scoped key", strings.Join(unknown, ", ")))
}
