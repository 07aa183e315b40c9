// Package config provides centralized configuration for the analysis and
// fetch commands. It loads from multiple sources, validates the result, and
// hands the rest of the application one typed Config value.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern VOLCAST_* for namespacing:
//
//	VOLCAST_DATA_PRICE_FILE=data/spx.csv
//	VOLCAST_ANALYSIS_FOLDS=10
//	VOLCAST_ANALYSIS_MODE=expanding
//	VOLCAST_LOGGING_LEVEL=debug
//
// # Validation
//
// Struct tags drive validation through go-playground/validator, extended
// with domain validators for model family names and cross-validation
// modes. Validation failures surface as field-scoped errors.
package config
