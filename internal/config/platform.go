package config

import "runtime"

// defaultInputFormat returns the ffmpeg capture demuxer for the host OS
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func defaultInputDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return ":default"
	case "windows":
		return "audio=default"
	default:
		return "default"
	}
}
