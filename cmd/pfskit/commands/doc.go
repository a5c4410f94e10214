// Package commands implements the pfskit CLI subcommands.
package commands
