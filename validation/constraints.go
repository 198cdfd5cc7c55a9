package validation

import (
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"contentops-backend/apperr"
	"contentops-backend/models"
)

// Carousel bounds that hold regardless of platform configuration.
const (
	carouselMinSlides = 2
	carouselHardMax   = 10
)

// Validate checks a draft post against the platform's configured limits
// before any task is dispatched. A missing platform_limits row means the
// platform is unbounded, not invalid.
func Validate(db *gorm.DB, platform, caption string, media []string, postType string) error {
	var limits *models.PlatformLimit
	var row models.PlatformLimit
	err := db.Where("platform = ?", platform).First(&row).Error
	switch {
	case err == nil:
		limits = &row
	case errors.Is(err, gorm.ErrRecordNotFound):
		limits = nil
	default:
		return apperr.Wrap(apperr.Downstream, "could not load platform limits", err)
	}
	return Check(limits, caption, media, postType)
}

// Check is the pure rule set, separated so callers with limits in hand
// (and tests) need no store.
func Check(limits *models.PlatformLimit, caption string, media []string, postType string) error {
	if limits != nil && limits.MaxCaptionLength > 0 {
		if utf8.RuneCountInString(caption) > limits.MaxCaptionLength {
			return apperr.Newf(apperr.Validation,
				"caption exceeds the %d character limit for this platform", limits.MaxCaptionLength)
		}
	}

	if limits != nil && limits.MaxHashtags > 0 {
		if n := CountHashtags(caption); n > limits.MaxHashtags {
			return apperr.Newf(apperr.Validation,
				"caption has %d hashtags, the platform allows %d", n, limits.MaxHashtags)
		}
	}

	switch postType {
	case models.PostTypeCarousel:
		max := carouselHardMax
		if limits != nil && limits.MaxCarouselSlides > 0 && limits.MaxCarouselSlides < max {
			max = limits.MaxCarouselSlides
		}
		if len(media) < carouselMinSlides {
			return apperr.Newf(apperr.Validation,
				"a carousel needs at least %d media items", carouselMinSlides)
		}
		if len(media) > max {
			return apperr.Newf(apperr.Validation,
				"a carousel supports at most %d media items", max)
		}
	case models.PostTypeVideo, models.PostTypeSingleVideo:
		if len(media) != 1 {
			return apperr.New(apperr.Validation, "a video post requires exactly one media item")
		}
	}

	return nil
}

// CountHashtags counts #-prefixed tokens in a caption.
func CountHashtags(caption string) int {
	count := 0
	for _, field := range strings.Fields(caption) {
		if strings.HasPrefix(field, "#") && len(field) > 1 {
			count++
		}
	}
	return count
}
