// Package tools provides the built-in tools a session can act with.
package tools
