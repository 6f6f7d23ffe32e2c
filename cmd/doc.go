// Package cmd implements the command-line interface of planet. It provides a
// hierarchical command structure for running a node and for calling the
// built-in servants of a node as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures a planet node
//   - kv: Commands for the planet.KV servant (get, set, upload, perf, etc.)
//   - lock: Commands for the planet.Lock servant (acquire, release)
//   - call: Commands for the planet.System servant (ping, echo, stats, info, log)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable PLANET_<FLAG> or in a
// .env file. See planet -help for a list of all commands.
package cmd
