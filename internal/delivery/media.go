package delivery

import (
	"path"
	"slices"
	"strings"
)

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaFile     MediaKind = "file"
)

var (
	audioExtensions    = []string{"mp3", "wav", "m4a", "aac", "flac", "ogg", "wma"}
	videoExtensions    = []string{"mp4", "avi", "mov", "mkv", "flv", "wmv", "webm"}
	documentExtensions = []string{"pdf", "doc", "docx", "txt", "xls", "xlsx", "ppt", "pptx"}
)

// ClassifyMedia decides the kind of an attachment from its MIME type,
// falling back to the file extension. Checks run image, audio, video,
// document in that order; anything else is a plain file.
func ClassifyMedia(mimeType, fileName string) MediaKind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaImage
	case strings.HasPrefix(mimeType, "audio/") || slices.Contains(audioExtensions, ext):
		return MediaAudio
	case strings.HasPrefix(mimeType, "video/") || slices.Contains(videoExtensions, ext):
		return MediaVideo
	case slices.Contains(documentExtensions, ext):
		return MediaDocument
	default:
		return MediaFile
	}
}
