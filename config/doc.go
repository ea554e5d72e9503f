// Package config loads chatrecall settings from a file and the environment.
package config
