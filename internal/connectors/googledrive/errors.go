package googledrive

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"

	"github.com/corpushq/connectors/internal/core/domain"
)

// wrapError normalizes googleapi errors into domain.APIError so the shared
// sync machinery can classify them without Drive knowledge.
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = operation
		}
		return &domain.APIError{
			StatusCode: gerr.Code,
			Message:    msg,
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}
