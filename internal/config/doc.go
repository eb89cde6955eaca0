// Package config provides configuration loading and validation for the live
// translator service. It handles YAML-based configuration with per-section
// validation and duration accessors.
package config
