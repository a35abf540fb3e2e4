package model

import "fmt"

// Page job states. Done and Failed are terminal: they have no outgoing
// transitions.
const (
	PageResolving = "resolving"
	PageFetching  = "fetching"
	PageMuxing    = "muxing"
	PageSidecar   = "sidecar"
	PageDone      = "done"
	PageFailed    = "failed"
)

var pageTransitions = map[string]map[string]bool{
	"": {
		PageResolving: true,
	},
	PageResolving: {
		PageFetching: true,
		PageFailed:   true,
		PageDone:     true, // output already on disk, nothing to do
	},
	PageFetching: {
		PageMuxing: true,
		PageFailed: true,
	},
	PageMuxing: {
		PageSidecar: true,
		PageDone:    true,
		PageFailed:  true,
	},
	PageSidecar: {
		// Sidecar retrieval is best-effort: it never fails the page.
		PageDone: true,
	},
	PageDone:   {},
	PageFailed: {},
}

func CanTransitionPage(from, to string) bool {
	next, ok := pageTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// TransitionPage advances a page state, rejecting any move out of a
// terminal state.
func TransitionPage(state *string, to string) error {
	if !CanTransitionPage(*state, to) {
		return fmt.Errorf("invalid page state transition: %q -> %q", *state, to)
	}
	*state = to
	return nil
}
