// Package render formats sessions and meeting records for the terminal.
package render
