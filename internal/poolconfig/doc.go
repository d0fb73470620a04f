// Package poolconfig loads dbpool-server's configuration from optional .env
// files, environment variables, and command-line flags, in that order of
// increasing precedence.
package poolconfig
