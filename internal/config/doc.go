// Package config loads and validates the presage.json configuration.
package config
