package publish

import (
	"os"

	mp4 "github.com/abema/go-mp4"
)

// videoMeta is the destination-rendering hint set for a video send. Zero
// values mean unknown; Telegram then guesses, which can letterbox.
type videoMeta struct {
	width    int
	height   int
	duration int // seconds
}

// probeVideo extracts width/height/duration from an MP4-family file. A
// probe failure is not an error: the video is sent without hints.
func probeVideo(path string) (videoMeta, bool) {
	f, err := os.Open(path)
	if err != nil {
		return videoMeta{}, false
	}
	defer f.Close()

	info, err := mp4.Probe(f)
	if err != nil {
		return videoMeta{}, false
	}

	var m videoMeta
	if info.Timescale > 0 {
		m.duration = int(info.Duration / uint64(info.Timescale))
	}
	for _, tr := range info.Tracks {
		if tr.AVC != nil {
			m.width = int(tr.AVC.Width)
			m.height = int(tr.AVC.Height)
			break
		}
	}
	if m.width == 0 && m.height == 0 && m.duration == 0 {
		return videoMeta{}, false
	}
	return m, true
}
