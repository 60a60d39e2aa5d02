package classify

import (
	"net/url"
	"path"
	"strings"
)

// Resource 表示图床 URL 指向的资源类型。
type Resource string

const (
	ResourceImage   Resource = "image"
	ResourceAlbum   Resource = "album"
	ResourceGallery Resource = "gallery"
	ResourceUnknown Resource = "unknown"
)

// 已知的媒体托管域名后缀。子域名前缀（m. / i. 等）不影响判断。
var mediaDomainSuffixes = []string{
	"imgur.com",
	"redd.it",
	"reddituploads.com",
}

// IsMediaURL 判断 URL 是否指向已知的媒体托管域。
//
// 仅当主机名（忽略子域名前缀）以图床根域名或社交内容源的
// 两个内容分发域名之一结尾时返回 true。
func IsMediaURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	for _, suffix := range mediaDomainSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// IsImgurHost 判断 URL 的主机名是否属于 Imgur。
//
// 比 IsMediaURL 更宽松（主机名中任意位置包含品牌词即可），
// 仅用于路由到 Imgur 专用客户端。
func IsImgurHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(parsed.Hostname(), "imgur")
}

// SniffResourceType 根据 URL 路径推断资源类型。
//
// 路径只有一段时视为直链图片（页面或文件均可）；否则按第一段匹配
// 固定映射 {a: album, gallery: gallery, image: image}，未命中返回 unknown。
func SniffResourceType(rawURL string) Resource {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ResourceUnknown
	}

	// 过滤首尾斜杠产生的空段。
	var slugs []string
	for _, slug := range strings.Split(parsed.Path, "/") {
		if slug != "" {
			slugs = append(slugs, slug)
		}
	}

	if len(slugs) == 0 {
		return ResourceUnknown
	}
	if len(slugs) == 1 {
		// 只有一个路径段时应当是图片直链，无论是 HTML 页面（无扩展名）
		// 还是图片文件（有扩展名）。
		return ResourceImage
	}

	switch slugs[0] {
	case "a":
		return ResourceAlbum
	case "gallery":
		return ResourceGallery
	case "image":
		return ResourceImage
	default:
		return ResourceUnknown
	}
}

// IsAlbum 判断 URL 是否指向相册。
//
// 非 Imgur 域名直接返回 false（社交内容源不托管相册）；
// gallery 与 album 在下游同等对待。
func IsAlbum(rawURL string) bool {
	if !IsImgurHost(rawURL) {
		return false
	}
	resource := SniffResourceType(rawURL)
	return resource == ResourceAlbum || resource == ResourceGallery
}

// ExtractResourceID 从 URL 中提取平台资源 ID。
//
// 取最后一个非空路径段，去掉 # 之后的锚点和文件扩展名。
// 对页面地址与文件直链、是否带尾斜杠均适用。
// 注意：该规则只对我们关心的媒体 URL 成立，不适用于一般 URL。
func ExtractResourceID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	trimmed := strings.TrimRight(parsed.Path, "/")
	segments := strings.Split(trimmed, "/")
	end := segments[len(segments)-1]

	// url.Parse 已剥离 fragment，但调用方可能传入手工拼接的地址。
	id, _, _ := strings.Cut(end, "#")

	ext := path.Ext(id)
	return strings.TrimSuffix(id, ext)
}

// StripBrandSubdomain 去掉 Imgur 主机名中的子域名前缀。
//
// 主机名形如 <anything>.imgur.com 时改写为 imgur.com，否则原样返回。
// Imgur 的部分资源子域名会拒绝携带凭证的请求，抓取原始字节前需要先改写。
func StripBrandSubdomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	host := parsed.Hostname()
	const root = "imgur.com"
	if host == root || !strings.HasSuffix(host, "."+root) {
		return rawURL
	}

	if port := parsed.Port(); port != "" {
		parsed.Host = root + ":" + port
	} else {
		parsed.Host = root
	}
	return parsed.String()
}
