package v1

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	errMissingTask = errors.New("Missing task field")
	errEmptyTask   = errors.New("task must not be empty")
)

// validateTask returns the task text of an analyze request.
func validateTask(task *string) (string, error) {
	if task == nil {
		return "", errMissingTask
	}
	if strings.TrimSpace(*task) == "" {
		return "", errEmptyTask
	}
	return *task, nil
}
