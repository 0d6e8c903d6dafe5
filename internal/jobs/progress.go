package jobs

import (
	"strconv"
	"strings"
)

// Event is the structured progress update pushed to callers.
type Event struct {
	Stage       string
	Percent     float64 // -1 when the phase is indeterminate
	FramesDone  int
	TotalFrames int
	ETA         string
	FPS         string
}

// ProgressFunc receives push notifications while a job runs. At least one
// event is delivered at or near completion.
type ProgressFunc func(Event)

// progressParser consumes ffmpeg's -progress key=value stream and derives
// a completion percent from the known output duration.
type progressParser struct {
	totalSeconds float64
}

// parseLine returns a clamped percent for lines that advance progress.
// The second result reports whether the line carried usable progress.
func (p progressParser) parseLine(line string) (float64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found || p.totalSeconds <= 0 {
		return 0, false
	}

	var outSeconds float64
	switch key {
	case "out_time_us", "out_time_ms":
		// Both fields are microseconds; out_time_ms is a legacy name.
		micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || micros < 0 {
			return 0, false
		}
		outSeconds = float64(micros) / 1e6
	default:
		return 0, false
	}

	return clampPercent(outSeconds / p.totalSeconds * 100), true
}

func clampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
