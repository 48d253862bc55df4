// Package config loads the wallet agent's JSON configuration, applies
// defaults for every surface and overlays the environment variables that
// select the signing key, the target network and the demo destination.
package config
