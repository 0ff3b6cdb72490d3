package main

import (
	"fmt"
	"io"
	"runtime"
)

// Version is set at build time via ldflags.
var Version = "v0.1.0"

// Colors
const (
	colorGreen = "\033[38;2;46;160;67m"
	colorCyan  = "\033[0;36m"
	colorBlue  = "\033[0;34m"
	colorBold  = "\033[1m"
	colorReset = "\033[0m"
)

// PrintVersion prints the current version
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "tts-adapter %s\n", Version)
	fmt.Fprintf(w, "Runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
