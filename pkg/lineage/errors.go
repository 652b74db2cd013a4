package lineage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCatalog is returned by Build when no objects were supplied.
var ErrEmptyCatalog = errors.New("catalog contains no objects")

// NotFoundError reports a traversal root absent from the graph.
type NotFoundError struct {
	Object string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object %q not found in lineage graph (rebuild the catalog if it was created recently)", e.Object)
}

// AmbiguousObjectError reports a partial name that matched more than one
// cataloged object.
type AmbiguousObjectError struct {
	Object     string
	Candidates []string
}

func (e *AmbiguousObjectError) Error() string {
	return fmt.Sprintf("object %q is ambiguous, candidates: %s", e.Object, strings.Join(e.Candidates, ", "))
}

// InvalidDepthError reports a traversal depth outside [MinDepth, MaxDepth].
type InvalidDepthError struct {
	Depth int
}

func (e *InvalidDepthError) Error() string {
	return fmt.Sprintf("invalid traversal depth %d (must be between %d and %d)", e.Depth, MinDepth, MaxDepth)
}

// InvalidDirectionError reports an unknown traversal direction.
type InvalidDirectionError struct {
	Direction string
}

func (e *InvalidDirectionError) Error() string {
	return fmt.Sprintf("invalid direction %q (want upstream, downstream, or both)", e.Direction)
}
