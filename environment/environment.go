// Package environment reads process configuration from environment
// variables, with defaults suitable for local development.
package environment

import (
	"os"
	"strconv"
)

var ffmpegPath = os.Getenv("FFMPEG_PATH")

func GetFFmpegPath() string {
	if ffmpegPath != "" {
		return ffmpegPath
	}
	return "ffmpeg"
}

var ffprobePath = os.Getenv("FFPROBE_PATH")

func GetFFprobePath() string {
	if ffprobePath != "" {
		return ffprobePath
	}
	return "ffprobe"
}

var listenAddr = os.Getenv("LISTEN_ADDR")

func GetListenAddr() string {
	if listenAddr != "" {
		return listenAddr
	}
	return ":8077"
}

var previewCacheCapacity = os.Getenv("PREVIEW_CACHE_CAPACITY")

func GetPreviewCacheCapacity() int {
	return intOrDefault(previewCacheCapacity, 64)
}

var commandQueueSize = os.Getenv("COMMAND_QUEUE_SIZE")

func GetCommandQueueSize() int {
	return intOrDefault(commandQueueSize, 32)
}

var eventQueueSize = os.Getenv("EVENT_QUEUE_SIZE")

func GetEventQueueSize() int {
	return intOrDefault(eventQueueSize, 128)
}

func intOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
