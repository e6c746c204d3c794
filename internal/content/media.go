package content

import "net/url"

// MediaURL returns the CDN address of m under base.
func MediaURL(base string, m Media) string {
	prefix := "img"
	if m.Kind == MediaVideo {
		prefix = "vid"
	}
	return base + "/" + prefix + "/" + url.PathEscape(m.ID)
}

// MediaURLs returns the distinct media addresses referenced by questions,
// in first-reference order. Duplicates are detected by media id.
func MediaURLs(base string, questions []Question) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, q := range questions {
		if q.Media == nil || seen[q.Media.ID] {
			continue
		}
		seen[q.Media.ID] = true
		urls = append(urls, MediaURL(base, *q.Media))
	}
	return urls
}
