package topology

import "github.com/cockroachdb/errors"

var (
	// ErrUnresolvedReference is returned when an access intent, a target list,
	// a placement or a default port names something the declaration does not
	// provide.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrMissingDependency marks an ordering violation inside the resolver.
	// It indicates a resolver defect, never bad input.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrPayloadRead is returned when a bootstrap script cannot be loaded.
	ErrPayloadRead = errors.New("bootstrap payload read failure")

	// ErrInvalidIdentifier is returned when a declaration has an empty or
	// duplicated identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

func unresolvedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnresolvedReference)
}

func missingDependencyf(format string, args ...interface{}) error {
	return errors.Mark(errors.AssertionFailedf(format, args...), ErrMissingDependency)
}
