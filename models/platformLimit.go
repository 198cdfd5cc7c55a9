package models

// PlatformLimit holds tenant-independent content constraints. A zero value
// in any column means the platform imposes no limit on that axis; a
// missing row means no limits at all.
type PlatformLimit struct {
	Platform          string `json:"platform" gorm:"primaryKey"`
	MaxCaptionLength  int    `json:"max_caption_length"`
	MaxHashtags       int    `json:"max_hashtags"`
	MaxCarouselSlides int    `json:"max_carousel_slides"`
}
