// SPDX-License-Identifier: MPL-2.0

// Package config loads modsolve settings with Viper, using CUE as the file
// format.
//
// The file is config.cue in the platform config directory
// ($XDG_CONFIG_HOME/modsolve on Linux, ~/Library/Application Support/modsolve
// on macOS, %APPDATA%\modsolve on Windows) or in the working directory. It is
// validated against the embedded #Config schema (config_schema.cue) and
// merged over the defaults; MODSOLVE_* environment variables override both.
package config
