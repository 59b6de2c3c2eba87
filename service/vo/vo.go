package vo

type Markdown string

// MimeType is a content server node mime type.
type MimeType string

// PageSummary describes a scraped page.
type PageSummary struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`       // Page title
	Description string   `json:"description"` // Meta description
	Keywords    []string `json:"keywords,omitempty"`
}

// ProjectRecord is one parsed project entry.
type ProjectRecord struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Link        string   `json:"link,omitempty"`
	Images      []string `json:"images,omitempty"`
	Videos      []string `json:"videos,omitempty"`
}

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type MediaItem struct {
	Kind   MediaKind `json:"kind"`
	Source string    `json:"src"`
}

type CardLink struct {
	Href     string `json:"href"`
	External bool   `json:"external"` // opens in a new browsing context
}

// CardView is the display projection of a ProjectRecord.
// An empty Description and a nil Link mean absent.
type CardView struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Link        *CardLink   `json:"link,omitempty"`
	Media       []MediaItem `json:"media"`
}

type RenderState string

const (
	RenderStateEmpty RenderState = "empty"
	RenderStateCards RenderState = "cards"
)

type RenderResult struct {
	State RenderState `json:"state"`
	Cards []CardView  `json:"cards,omitempty"`
}

func (r RenderResult) Empty() bool {
	return r.State != RenderStateCards || len(r.Cards) == 0
}
