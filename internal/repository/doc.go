// Package repository persists bake output.
//
// Subpackages:
//   - objectstore: baked animations as JSON objects in MinIO
//   - postgres: bake run records
package repository
