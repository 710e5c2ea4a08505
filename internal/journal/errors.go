package journal

import (
	"git.home.luguber.info/inful/companion/internal/foundation/errors"
)

var (
	// ErrOpenFailed indicates the SQLite database could not be opened.
	ErrOpenFailed = errors.JournalError("could not open notification journal").Build()

	// ErrSchemaFailed indicates the database schema could not be initialized.
	ErrSchemaFailed = errors.JournalError("failed to initialize journal schema").Build()

	// ErrAppendFailed indicates appending a record failed.
	ErrAppendFailed = errors.JournalError("failed to append notification to journal").Build()

	// ErrQueryFailed indicates querying or scanning records failed.
	ErrQueryFailed = errors.JournalError("failed to query notification journal").Build()
)

func wrap(sentinel *errors.ClassifiedError, err error) error {
	return errors.WrapError(err, sentinel.Category(), sentinel.Message()).Build()
}
