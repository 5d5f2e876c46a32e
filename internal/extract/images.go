package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// cdnAllowList names the vehicle-photo CDNs dealer platforms serve inventory
// photos from. A URL must match one of these by host or path to be accepted.
var cdnAllowList = []string{
	"photos.dealer.com",
	"images.dealer.com",
	"pictures.dealer.com",
	"cdn.drivegood.com",
	"imageonthefly.autodatadirect.com",
	"vehicle-photos",
	"/inventoryphotos/",
	"/vehicle-images/",
	"edgecast-img.yahoo.net",
	"media.chromedata.com",
}

// cdnBlockList rejects theme assets even when they live on an allowed CDN.
var cdnBlockList = []string{
	"logo", "banner", "icon", "sprite", "placeholder", "no-image",
	"nophoto", "coming-soon", "/theme/", "/assets/brand",
}

var gallerySelectors = []string{
	".vehicle-gallery img", ".gallery-thumbs img", "#vehicle-photos img",
	".vdp-gallery img", "[class*='gallery'] img", ".carousel-inner img",
}

// extractImages collects vehicle photo URLs, gallery containers first, then
// any allow-listed CDN URL elsewhere on the page.
func extractImages(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var images []string

	add := func(raw string) {
		abs := absoluteImageURL(base, raw)
		if abs == "" || !allowedImageURL(abs) {
			return
		}
		abs = maxResolution(abs)
		key, err := scrape.NormalizeURL(abs)
		if err != nil || seen[key] {
			return
		}
		seen[key] = true
		images = append(images, abs)
	}

	for _, sel := range gallerySelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			add(imageSrc(s))
		})
	}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		add(imageSrc(s))
	})

	return images
}

func imageSrc(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func absoluteImageURL(base *url.URL, raw string) string {
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func allowedImageURL(abs string) bool {
	lower := strings.ToLower(abs)
	for _, blocked := range cdnBlockList {
		if strings.Contains(lower, blocked) {
			return false
		}
	}
	for _, allowed := range cdnAllowList {
		if strings.Contains(lower, allowed) {
			return true
		}
	}
	return false
}

// maxResolution rewrites known CDN sizing parameters to the largest variant.
func maxResolution(abs string) string {
	u, err := url.Parse(abs)
	if err != nil {
		return abs
	}
	q := u.Query()
	changed := false
	for _, param := range []string{"impolicy", "w", "width", "maxwidth"} {
		if !q.Has(param) {
			continue
		}
		switch param {
		case "impolicy":
			q.Set(param, "downsize_bestfit_watermark/2048x1536")
		default:
			q.Set(param, "2048")
		}
		changed = true
	}
	if !changed {
		return abs
	}
	u.RawQuery = q.Encode()
	return u.String()
}
