// Package config loads compiler options from CUE or YAML files. Both
// formats are validated against the embedded schema.cue, which also
// supplies the defaults.
package config
