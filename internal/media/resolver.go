// Package media turns the three accepted media inputs of a post into a
// canonical descriptor and stores uploaded files.
package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/d60-Lab/postboard/internal/model"
)

// Descriptor 帖子上的规范化媒体
type Descriptor struct {
	URL  string          `json:"url"`
	Type model.MediaType `json:"type"`
}

// Source 媒体来源：Upload | RemoteURL | LegacyImage，nil 表示无媒体
type Source interface {
	isSource()
}

// Upload 已落盘的上传文件
type Upload struct {
	Name     string // 存储目录下的文件名
	MIMEType string
}

// RemoteURL 客户端提交的外链
type RemoteURL struct {
	URL string
}

// LegacyImage 旧版客户端的 image 字段
type LegacyImage struct {
	URL string
}

func (Upload) isSource()      {}
func (RemoteURL) isSource()   {}
func (LegacyImage) isSource() {}

var videoExts = map[string]struct{}{
	"mp4": {}, "mov": {}, "avi": {}, "wmv": {}, "flv": {}, "webm": {}, "mkv": {},
}

// Pick 按 上传文件 > mediaUrl > image 的顺序选出唯一来源
func Pick(upload *Upload, mediaURL, image string) Source {
	switch {
	case upload != nil:
		return *upload
	case strings.TrimSpace(mediaURL) != "":
		return RemoteURL{URL: strings.TrimSpace(mediaURL)}
	case strings.TrimSpace(image) != "":
		return LegacyImage{URL: strings.TrimSpace(image)}
	default:
		return nil
	}
}

// Resolver 把 Source 解析为 Descriptor，不做任何网络或磁盘访问
type Resolver struct {
	base string // e.g. http://localhost:8080/uploads
}

func NewResolver(publicURL, urlPrefix string) *Resolver {
	prefix := "/" + strings.Trim(urlPrefix, "/")
	return &Resolver{base: strings.TrimRight(publicURL, "/") + prefix}
}

// Resolve 返回 nil 表示帖子没有媒体
func (r *Resolver) Resolve(src Source) *Descriptor {
	switch s := src.(type) {
	case Upload:
		t := model.MediaTypeImage
		if strings.HasPrefix(strings.ToLower(s.MIMEType), "video/") {
			t = model.MediaTypeVideo
		}
		return &Descriptor{URL: r.UploadURL(s.Name), Type: t}
	case *Upload:
		if s == nil {
			return nil
		}
		return r.Resolve(*s)
	case RemoteURL:
		t := model.MediaTypeImage
		if IsVideoURL(s.URL) {
			t = model.MediaTypeVideo
		}
		return &Descriptor{URL: s.URL, Type: t}
	case LegacyImage:
		return &Descriptor{URL: s.URL, Type: model.MediaTypeImage}
	default:
		return nil
	}
}

// UploadURL 上传文件的公开地址
func (r *Resolver) UploadURL(name string) string {
	return r.base + "/" + name
}

// StoredName 判断 URL 是否指向本服务保存的上传文件，是则返回文件名
func (r *Resolver) StoredName(rawURL string) (string, bool) {
	name, ok := strings.CutPrefix(rawURL, r.base+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", false
	}
	return name, true
}

// IsVideoURL 按路径扩展名判断（忽略大小写、查询串）
func IsVideoURL(raw string) bool {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	_, ok := videoExts[ext]
	return ok
}
