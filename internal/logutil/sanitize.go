package logutil

import "strings"

// maxLogValueLen caps user-provided values echoed into log lines.
const maxLogValueLen = 256

// SanitizeForLog removes newlines and control characters from user-provided
// strings so a crafted host name or username cannot forge log entries.
// Values longer than maxLogValueLen are truncated.
func SanitizeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")

	var result strings.Builder
	result.Grow(len(s))
	n := 0
	for _, r := range s {
		if r < 32 || r == 127 {
			continue
		}
		if n == maxLogValueLen {
			result.WriteString("...")
			break
		}
		result.WriteRune(r)
		n++
	}
	return result.String()
}
