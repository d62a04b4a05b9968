// Package config loads the two kinds of configuration hostcompat uses.
//
// Tables are the static compatibility data shipped with the core: detection
// bounds, the canonical event table, table-driven patches and deprecation
// patterns. They are TOML, embedded in the binary, and may be replaced
// wholesale with a file for testing new host releases.
//
// Settings are operator knobs for the command-line tool (logging, watch
// debounce, scenario timeout), resolved by viper from a file, HOSTCOMPAT_*
// environment variables and flags.
package config
