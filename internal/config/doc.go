// Package config provides configuration loading and validation for the
// meeting recorder. Values come from built-in defaults, an optional YAML
// file, optional .env files and MOMREC_* environment variables, in that
// order of precedence.
package config
