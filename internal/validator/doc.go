// Package validator wraps go-playground/validator with the tag names and
// custom rules used by request bodies and authored shots.
//
// Field names in errors follow the JSON tags, with nested fields joined by
// dots. The custom tags are:
//   - easing: a known easing curve name
//   - path_mode: a known camera path mode
package validator
