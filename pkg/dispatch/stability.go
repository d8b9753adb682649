package dispatch

import (
	"context"
	"time"
)

// FileStat is the part of a stat result that decides stability.
type FileStat struct {
	Size    int64
	ModTime time.Time
}

// IsStable reports whether two consecutive polls saw the same size and
// modification time and the size reaches minSize. prev is nil on the
// first poll.
func IsStable(prev *FileStat, cur FileStat, minSize int64) bool {
	if prev == nil {
		return false
	}
	return prev.Size == cur.Size && prev.ModTime.Equal(cur.ModTime) && cur.Size >= minSize
}

// WaitStable polls path until it is stable or the attempt budget runs out.
// A missing file does not reset the previous observation.
func (h *Handler) WaitStable(ctx context.Context, path string) bool {
	var last *FileStat
	for i := 0; i < h.config.ReadyAttempts; i++ {
		info, err := h.stat(path)
		if err == nil {
			cur := FileStat{Size: info.Size(), ModTime: info.ModTime()}
			if IsStable(last, cur, h.config.ReadyMinSize) {
				return true
			}
			last = &cur
		}

		if err := h.sleep(ctx, h.config.ReadyDelay); err != nil {
			return false
		}
	}
	return false
}
