// Package config provides application configuration loaded from environment
// variables (BRS_ prefix) with an optional YAML file fallback, plus the
// canonical path layout for input data, run artifacts, and logs.
package config
