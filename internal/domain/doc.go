// Package domain contains the types shared by the timeline engine and the
// services around it.
//
// This package defines:
//   - Camera paths, one variant type per mode, plus the flat CameraPathSpec
//     used by JSON and YAML authoring
//   - Shots and their validation rules
//   - World state lookups used to resolve focus and chase targets
//   - Raw physics samples, keyframes and baked animations
//   - Bake requests, body bindings and per-body results
//
// # Design Philosophy
//
// Domain types carry no I/O. Camera evaluation and trajectory resampling
// operate on these values directly; storage and transport layers treat a
// BakedAnimation as an opaque artifact keyed by object id.
package domain
