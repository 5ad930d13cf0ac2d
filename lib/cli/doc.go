// Package cli holds the go-cbcservice cobra commands.
package cli
