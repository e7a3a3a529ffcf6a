package eventstore

import (
	"git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open event store database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize event store schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.EventStoreError("failed to append event to store").Build()

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = errors.EventStoreError("failed to query events from store").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of event payload failed.
	ErrMarshalPayloadFailed = errors.EventStoreError("failed to marshal event payload").Build()
)

func storeFailure(sentinel *errors.ClassifiedError, cause error) error {
	return errors.WrapError(cause, sentinel.Category(), sentinel.Message()).
		WithSeverity(sentinel.Severity()).
		Build()
}
