// Package cmd wires the gwctl cobra command tree.
package cmd
