// Package errors provides the structured error type shared by the timeline engine
// and the surfaces that host it.
//
// # Error Kinds
//
//   - UnresolvedReference: a camera path names an object missing from world state (422)
//   - EmptyTrajectory: the physics source returned no samples for a body (422)
//   - BakeInProgress: another bake holds the (scene, object) slot (409)
//   - TransientFetch: the physics source failed in a retry-eligible way (503)
//   - PermanentFetch: the physics source rejected the request (502, or 404 when not found)
//   - Validation / NotFound / Internal: request and lookup failures
//
// # Usage
//
//	return apperrors.UnresolvedReference("ball")
//	return apperrors.TransientFetch("rapier returned 503").WithError(err)
//
// Check error kinds:
//
//	if apperrors.IsRetryable(err) {
//	    // schedule another attempt
//	}
//
// Errors survive wrapping with fmt.Errorf and %w.
package errors
