// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml (or the file named by -config or
// TRANSITMAP_CONFIG), overridden by secrets from the environment, validated using struct
// tags and completed with defaults. The transit section may list several GTFS feeds;
// SelectFeed picks one by name.
package config
