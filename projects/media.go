package projects

import (
	"regexp"

	"github.com/foomo/portfolio-mcp/service/vo"
)

var videoSourcePattern = regexp.MustCompile(`(?i)\.(mp4|webm|ogg)(?:$|[?#])`)

// IsVideoSource reports whether src points at a video file by extension,
// tolerating a query or fragment suffix.
func IsVideoSource(src string) bool {
	return videoSourcePattern.MatchString(src)
}

// Classify lists the record's media: image entries first, reclassified as
// video by extension, then the explicit videos. Empty paths are skipped.
func Classify(record vo.ProjectRecord) []vo.MediaItem {
	media := make([]vo.MediaItem, 0, len(record.Images)+len(record.Videos))
	for _, src := range record.Images {
		if src == "" {
			continue
		}
		kind := vo.MediaKindImage
		if IsVideoSource(src) {
			kind = vo.MediaKindVideo
		}
		media = append(media, vo.MediaItem{Kind: kind, Source: src})
	}
	for _, src := range record.Videos {
		if src == "" {
			continue
		}
		media = append(media, vo.MediaItem{Kind: vo.MediaKindVideo, Source: src})
	}
	return media
}
