package graph

import "errors"

// Sentinel errors for structural graph violations. These indicate
// programmer or store-data errors and fail fast.
var (
	ErrDuplicateNode   = errors.New("duplicate node id")
	ErrMissingEndpoint = errors.New("edge endpoint not in graph")
)

// ErrNodeNotFound is returned by node lookups for unknown ids.
var ErrNodeNotFound = errors.New("node not found")

// ErrEmptyProjection is returned when a projection target that should
// exist yields no graph data.
var ErrEmptyProjection = errors.New("projection returned no graph data")

// ErrProjectionNotFound is returned by Source implementations when the
// requested projection target (filter match, nodeset) does not exist.
// Project translates it into ErrEmptyProjection.
var ErrProjectionNotFound = errors.New("projection target not found")
