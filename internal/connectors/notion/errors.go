package notion

import (
	"errors"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/corpushq/connectors/internal/core/domain"
)

// wrapError normalizes notionapi failures into domain.APIError so status
// based predicates work across adapters.
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return &domain.APIError{
			StatusCode: apiErr.Status,
			Message:    fmt.Sprintf("%s: %s (%s)", operation, apiErr.Message, apiErr.Code),
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
