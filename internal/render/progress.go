package render

import (
	"bytes"
	"regexp"
	"strconv"
)

// Example: frame= 1234 fps=25.0 q=28.0 size=  10240kB time=00:00:51.20 bitrate=1638.4kbits/s speed=1.05x
var (
	timeRe  = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)
	speedRe = regexp.MustCompile(`speed=\s*(\d+\.?\d*)x`)
)

// ParseProgressTime extracts the encoded position in seconds from an ffmpeg
// status line.
func ParseProgressTime(line string) (float64, bool) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(hours*3600+mins*60) + secs, true
}

// ParseSpeed extracts the encode speed multiplier from an ffmpeg status line.
func ParseSpeed(line string) (float64, bool) {
	m := speedRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return v, err == nil
}

// scanLogLines splits on \r as well as \n; ffmpeg rewrites its status line
// with carriage returns.
func scanLogLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, bytes.TrimSpace(data[:i]), nil
	}
	if atEOF {
		return len(data), bytes.TrimSpace(data), nil
	}
	return 0, nil, nil
}
