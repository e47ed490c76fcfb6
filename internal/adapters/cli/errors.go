package cli

import (
	"github.com/kirillkom/studio-archive/internal/core/domain"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitInvalid     = 2
	exitNotFound    = 3
	exitUnavailable = 4
)

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case domain.IsKind(err, domain.ErrInvalidInput):
		return exitInvalid
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrEntityNotFound):
		return exitNotFound
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrOracleUnavailable):
		return exitUnavailable
	default:
		return exitFailure
	}
}
