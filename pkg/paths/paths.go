// Package paths classifies filesystem paths seen under the screenshot tree.
//
// Steam writes screenshots to .../userdata/<user>/760/remote/<appid>/screenshots/
// on the host, while the container mount exposes the same tree as
// /screenshots/<appid>/screenshots/. Both layouts are recognised.
package paths

import (
	"path/filepath"
	"strconv"
	"strings"
)

// MinAppID is the smallest numeric folder name treated as an app id.
// Lower numbers are junk folders Steam leaves behind.
const MinAppID = 100

// ExcludedDirectory is the folder name whose contents are never delivered.
const ExcludedDirectory = "thumbnails"

var candidateExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsCandidateFile reports whether path has one of the screenshot image extensions.
func IsCandidateFile(path string) bool {
	return candidateExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsExcludedDirectory reports whether any segment of path is the thumbnails folder.
func IsExcludedDirectory(path string) bool {
	for _, segment := range segments(path) {
		if strings.EqualFold(segment, ExcludedDirectory) {
			return true
		}
	}
	return false
}

// IsCandidate combines both checks: an image file not under an excluded folder.
func IsCandidate(path string) bool {
	return IsCandidateFile(path) && !IsExcludedDirectory(path)
}

// ExtractAppID returns the Steam app id encoded in path, if any.
//
// Recognised layouts, first match wins:
//
//	/screenshots/<appid>/...        container mount
//	.../remote/<appid>/...          host userdata tree
func ExtractAppID(path string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if IsExcludedDirectory(path) {
		return "", false
	}

	// parts[0] is empty for absolute paths.
	if len(parts) > 2 && parts[1] == "screenshots" && isValidAppID(parts[2]) {
		return parts[2], true
	}

	for i, part := range parts {
		if part != "remote" {
			continue
		}
		if i+1 < len(parts) && isValidAppID(parts[i+1]) {
			return parts[i+1], true
		}
		break
	}

	return "", false
}

func isValidAppID(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		// Overflowing ids are still all digits and far above the threshold.
		return true
	}
	return n >= MinAppID
}

func segments(path string) []string {
	return strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' })
}
