package application

import (
	stderrors "errors"
	"fmt"

	"github.com/printflow/job-lifecycle/pkg/errors"

	"github.com/printflow/job-lifecycle/internal/domain"
)

// mapDomainError turns domain failures into AppErrors the handlers render
func mapDomainError(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAppError(err) {
		return err
	}

	var invalid *domain.InvalidTransitionError
	if stderrors.As(err, &invalid) {
		return errors.ErrInvalidTransition(
			string(invalid.Domain),
			string(invalid.From),
			string(invalid.To),
			statusStrings(invalid.Allowed),
		).Wrap(err)
	}

	var stale *domain.StaleAssignmentError
	if stderrors.As(err, &stale) {
		return errors.ErrStaleAssignment(stale.CurrentAssignee, stale.ExpectedAssignee).Wrap(err)
	}

	switch {
	case stderrors.Is(err, domain.ErrJobNotFound):
		return errors.ErrNotFound("job").Wrap(err)
	case stderrors.Is(err, domain.ErrDuplicateJobCard),
		stderrors.Is(err, domain.ErrJobAlreadyAssigned),
		stderrors.Is(err, domain.ErrJobClosed):
		return errors.ErrConflict(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrUnknownDomain),
		stderrors.Is(err, domain.ErrInvalidStage),
		stderrors.Is(err, domain.ErrStageOutOfOrder),
		stderrors.Is(err, domain.ErrInvalidAssignment),
		stderrors.Is(err, domain.ErrInvalidJob),
		stderrors.Is(err, domain.ErrInvalidPriority),
		stderrors.Is(err, domain.ErrJobNotAssigned):
		return errors.ErrValidation(err.Error()).Wrap(err)
	default:
		return fmt.Errorf("lifecycle operation failed: %w", err)
	}
}
