package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCandidateFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/screenshots/440/screenshots/a.jpg", true},
		{"/screenshots/440/screenshots/a.JPEG", true},
		{"/screenshots/440/screenshots/a.Png", true},
		{"/screenshots/440/screenshots/a.gif", false},
		{"/screenshots/440/screenshots/a.jpg.part", false},
		{"/screenshots/440/screenshots/jpg", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCandidateFile(tt.path))
		})
	}
}

func TestIsExcludedDirectory(t *testing.T) {
	assert.True(t, IsExcludedDirectory("/data/screenshots/thumbnails/5.jpg"))
	assert.True(t, IsExcludedDirectory("/data/screenshots/Thumbnails/5.jpg"))
	assert.False(t, IsExcludedDirectory("/data/screenshots/thumbnails-old/5.jpg"))
	assert.False(t, IsExcludedDirectory("/data/screenshots/440/5.jpg"))
}

func TestIsCandidate(t *testing.T) {
	assert.True(t, IsCandidate("/screenshots/440/screenshots/a.png"))
	assert.False(t, IsCandidate("/screenshots/440/screenshots/thumbnails/a.png"))
	assert.False(t, IsCandidate("/screenshots/440/screenshots/a.txt"))
}

func TestExtractAppID(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{
			name:   "container layout",
			path:   "/screenshots/760/screenshots/img.jpg",
			want:   "760",
			wantOK: true,
		},
		{
			name:   "host remote layout",
			path:   "/home/u/.steam/userdata/1/760/remote/440/screenshots/img.jpg",
			want:   "440",
			wantOK: true,
		},
		{
			name: "thumbnail",
			path: "/data/screenshots/thumbnails/5.jpg",
		},
		{
			name: "below junk threshold",
			path: "/data/screenshots/42/screenshots/img.jpg",
		},
		{
			name: "container layout below threshold",
			path: "/screenshots/99/screenshots/img.jpg",
		},
		{
			name: "remote followed by non-numeric",
			path: "/home/u/.steam/userdata/1/760/remote/abc/screenshots/img.jpg",
		},
		{
			name: "remote at end of path",
			path: "/home/u/remote",
		},
		{
			name: "remote layout under thumbnails",
			path: "/home/u/.steam/userdata/1/760/remote/440/screenshots/thumbnails/img.jpg",
		},
		{
			name:   "threshold is inclusive",
			path:   "/mnt/remote/100/screenshots/img.jpg",
			want:   "100",
			wantOK: true,
		},
		{
			name: "no known layout",
			path: "/tmp/img.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractAppID(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
