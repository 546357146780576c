// Package config defines the configuration model for SiteScout.
// It provides defaults, CLI-facing validation, and the YAML site
// configuration file loader.
package config
