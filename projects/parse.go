package projects

import (
	"strings"

	"github.com/foomo/portfolio-mcp/service/vo"
)

const (
	titleMarker       = "## "
	bulletMarker      = "- "
	descriptionMarker = "description:"
	linkMarker        = "link:"
	imagesMarker      = "images:"
	videosMarker      = "videos:"
)

// section tells which media list bullets are collected into.
type section int

const (
	sectionNone section = iota
	sectionImages
	sectionVideos
)

// parseState is the accumulator folded over the document lines.
// current is nil until the first title marker.
type parseState struct {
	done    []vo.ProjectRecord
	current *vo.ProjectRecord
	section section
}

// Parse converts a projects document into records in source order.
// It never fails: unknown lines are ignored or folded into the description.
func Parse(document string) []vo.ProjectRecord {
	var state parseState
	for _, line := range splitLines(document) {
		state = state.step(line)
	}
	return state.finish()
}

func splitLines(document string) []string {
	lines := strings.Split(document, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func (s parseState) step(line string) parseState {
	if strings.HasPrefix(line, titleMarker) {
		s = s.close()
		s.current = &vo.ProjectRecord{
			Title: strings.TrimSpace(strings.TrimPrefix(line, "##")),
		}
		s.section = sectionNone
		return s
	}
	if s.current == nil {
		return s
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		s.section = sectionNone
	case hasPrefixFold(trimmed, descriptionMarker):
		s.current.Description = strings.TrimSpace(trimmed[len(descriptionMarker):])
		s.section = sectionNone
	case hasPrefixFold(trimmed, linkMarker):
		s.current.Link = strings.TrimSpace(trimmed[len(linkMarker):])
		s.section = sectionNone
	case hasPrefixFold(trimmed, imagesMarker):
		s.section = sectionImages
	case hasPrefixFold(trimmed, videosMarker):
		s.section = sectionVideos
	case s.section != sectionNone:
		// stray lines inside a media section are dropped, never read as text
		s.collect(trimmed)
	case s.current.Description == "":
		s.current.Description = trimmed
	default:
		s.current.Description += " " + trimmed
	}
	return s
}

func (s parseState) collect(trimmed string) {
	if !strings.HasPrefix(trimmed, bulletMarker) {
		return
	}
	path := strings.TrimSpace(trimmed[len(bulletMarker):])
	if path == "" {
		return
	}
	switch s.section {
	case sectionImages:
		s.current.Images = append(s.current.Images, path)
	case sectionVideos:
		s.current.Videos = append(s.current.Videos, path)
	case sectionNone:
	}
}

// close moves the open record, if any, to the finished list.
func (s parseState) close() parseState {
	if s.current == nil {
		return s
	}
	record := *s.current
	record.Description = strings.TrimSpace(record.Description)
	s.done = append(s.done, record)
	s.current = nil
	return s
}

func (s parseState) finish() []vo.ProjectRecord {
	s = s.close()
	records := make([]vo.ProjectRecord, 0, len(s.done))
	for _, record := range s.done {
		if strings.TrimSpace(record.Title) == "" {
			continue
		}
		records = append(records, record)
	}
	return records
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
