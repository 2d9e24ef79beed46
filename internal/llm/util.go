// Package llm - util.go provides shared helpers for collaborator input and output.
package llm

import (
	"mime"
	"path/filepath"
	"strings"
)

// audioTypes covers recorder formats that mime.TypeByExtension does not know on every platform.
var audioTypes = map[string]string{
	".webm": "audio/webm",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// AudioMIMEType guesses the MIME type of a recording from its file name.
// Unknown names are treated as webm, the browser recorder default.
func AudioMIMEType(hintName string) string {
	ext := strings.ToLower(filepath.Ext(hintName))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "audio/") {
		if idx := strings.Index(t, ";"); idx >= 0 {
			t = t[:idx]
		}
		return t
	}
	return "audio/webm"
}

// Preview shortens text to at most n runes for log lines.
func Preview(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
