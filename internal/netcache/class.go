package netcache

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Class is the caching policy a request falls under.
type Class int

const (
	// ClassNone requests are passed straight to the network.
	ClassNone Class = iota
	// ClassData are per-category payloads under /data/, except meta.json.
	ClassData
	// ClassMedia are images and videos, on the media hosts or under /media/.
	ClassMedia
	// ClassShell is every other same-origin GET.
	ClassShell
)

func (c Class) String() string {
	switch c {
	case ClassData:
		return "data"
	case ClassMedia:
		return "media"
	case ClassShell:
		return "shell"
	}
	return "none"
}

// Classify decides which policy owns req.
func (w *Worker) Classify(req *http.Request) Class {
	u := req.URL
	if req.Method != http.MethodGet || u == nil {
		return ClassNone
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ClassNone
	}
	if w.isMediaHost(u.Hostname()) || strings.Contains(u.Path, "/media/") {
		return ClassMedia
	}
	if !strings.EqualFold(u.Host, w.origin.Host) || u.Scheme != w.origin.Scheme {
		return ClassNone
	}
	if isDataPath(u.Path) {
		return ClassData
	}
	return ClassShell
}

// owned reports whether u points at the origin or a configured media
// host. Media classed by path alone is not owned.
func (w *Worker) owned(u *url.URL) bool {
	if strings.EqualFold(u.Host, w.origin.Host) && u.Scheme == w.origin.Scheme {
		return true
	}
	return w.isMediaHost(u.Hostname())
}

func (w *Worker) isMediaHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range w.opts.MediaHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func isDataPath(p string) bool {
	i := strings.LastIndex(p, "/data/")
	if i < 0 {
		return false
	}
	rest := p[i+len("/data/"):]
	if path.Ext(rest) != ".json" || len(rest) <= len(".json") {
		return false
	}
	return !strings.HasPrefix(rest, "meta.json")
}
