// Package service contains the orchestration layer of the stage engine.
//
// BakeService turns physics trajectories into keyframe tracks. It fans out
// one fetch per bound body, resamples each result onto the output grid and
// reports a status for every body. A BakeGuard keeps two bakes from working
// on the same scene object at once.
//
// CameraService wraps the pure camera evaluator with metrics and logging
// for the HTTP and CLI surfaces.
//
// # Thread Safety
//
// All services are safe for concurrent use from multiple goroutines.
package service
