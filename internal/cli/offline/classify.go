package offline

import (
	"net/http"
	"path"
	"strings"
)

// Class — политика кэширования запроса.
type Class int

const (
	ClassOther Class = iota
	ClassNavigation
	ClassAsset
	ClassImage
)

func (c Class) String() string {
	switch c {
	case ClassNavigation:
		return "navigation"
	case ClassAsset:
		return "asset"
	case ClassImage:
		return "image"
	default:
		return "other"
	}
}

var (
	assetExt = map[string]bool{".js": true, ".mjs": true, ".css": true, ".woff": true, ".woff2": true, ".ttf": true, ".otf": true}
	imageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true, ".avif": true}
)

// Classify относит запрос к одной из политик. Навигация: Sec-Fetch-Mode: navigate
// или Accept с text/html; ресурсы сборки: скрипты, стили, шрифты и любые запросы
// к доверенным хостам; изображения: по расширению или Accept: image/*.
func Classify(req *http.Request, trustedHosts []string) Class {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" || strings.Contains(req.Header.Get("Accept"), "text/html") {
		return ClassNavigation
	}
	ext := strings.ToLower(path.Ext(req.URL.Path))
	if imageExt[ext] || strings.HasPrefix(req.Header.Get("Accept"), "image/") {
		return ClassImage
	}
	if assetExt[ext] {
		return ClassAsset
	}
	host := req.URL.Hostname()
	for _, h := range trustedHosts {
		if strings.EqualFold(host, h) {
			return ClassAsset
		}
	}
	return ClassOther
}
