// Package credential finds the marketplace session token.
//
// Lookup order is the HOUSE_NOTIFY_TOKEN environment variable, then the OS
// keyring (github.com/99designs/keyring), then a plain token file in the
// config directory. "house-notify login" writes the keyring.
package credential
