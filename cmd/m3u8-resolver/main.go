// Package main is the entry point for the m3u8 resolver.
package main

import "m3u8-resolver/internal/cli"

func main() {
	cli.Execute()
}
