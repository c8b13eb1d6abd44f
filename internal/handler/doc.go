// Package handler exposes the stage engine over HTTP with Fiber.
//
// Routes:
//   - /v1/bakes: synchronous and queued physics bakes, bake run lookup
//   - /v1/animations: stored keyframe tracks
//   - /v1/camera: shot evaluation, sampling and a live SSE preview
//   - /health, /version: liveness and build info
//
// Errors are rendered from AppError codes; see handleError.
package handler
