package telegram

import "unicode/utf8"

// TruncateCaption shortens caption to at most limit characters. Longer
// captions end with "..." so the result is exactly limit characters, except
// for limits of three or less, which are cut without a marker.
func TruncateCaption(caption string, limit int) string {
	if caption == "" || utf8.RuneCountInString(caption) <= limit {
		return caption
	}
	if limit <= 0 {
		return ""
	}

	runes := []rune(caption)
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}
