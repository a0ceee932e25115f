// Package file stores chatlogs settings on the local filesystem as TOML,
// with a .env and CHATLOGS_* environment overlay.
package file
