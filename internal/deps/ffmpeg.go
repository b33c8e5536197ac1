package deps

import "strings"

// FFmpegVersionArgs prints the banner ffmpeg and ffprobe start with.
var FFmpegVersionArgs = []string{"-hide_banner", "-version"}

// parseVersionLine extracts the version token from output such as
// "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) ...". Other output yields its
// first line.
func parseVersionLine(output string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	for i := 0; i < len(fields)-1; i++ {
		if fields[i] == "version" {
			return fields[i+1]
		}
	}
	return line
}
