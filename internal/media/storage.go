package media

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/d60-Lab/postboard/pkg/apperr"
)

var (
	ErrTooLarge        = apperr.InvalidArgument("file too large")
	ErrUnsupportedType = apperr.InvalidArgument("Only image or video files are allowed")
)

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// 上传目录同源对外提供，可执行脚本的图片类型一律拒绝
var scriptableTypes = map[string]struct{}{
	"image/svg+xml": {},
}

// Storage 把上传文件保存到本地目录
type Storage struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewStorage(dir string, maxBytes int64) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	return &Storage{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

func (s *Storage) Dir() string { return s.dir }

func (s *Storage) MaxBytes() int64 { return s.maxBytes }

// Save 校验大小与类型后落盘；只接受 image/* 与 video/*
func (s *Storage) Save(fh *multipart.FileHeader) (*Upload, error) {
	if fh.Size > s.maxBytes {
		return nil, ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("media: open upload: %w", err))
	}
	defer src.Close()

	mimeType, err := detectType(fh.Header.Get("Content-Type"), src)
	if err != nil {
		return nil, err
	}

	name := s.fileName(fh.Filename, mimeType)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("media: create temp: %w", err))
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(src, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("media: write upload: %w", err))
	}
	if n > s.maxBytes {
		return nil, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return nil, apperr.Internal(fmt.Errorf("media: store upload: %w", err))
	}
	return &Upload{Name: name, MIMEType: mimeType}, nil
}

// Remove 删除已保存的文件，不存在视为成功
func (s *Storage) Remove(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("media: refusing to remove %q", name)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// detectType 声明类型为空或 octet-stream 时按内容嗅探
func detectType(declared string, src multipart.File) (string, error) {
	mt := ""
	if declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil {
			mt = strings.ToLower(parsed)
		}
	}
	if mt == "" || mt == "application/octet-stream" {
		detected, err := mimetype.DetectReader(src)
		if err != nil {
			return "", apperr.Internal(fmt.Errorf("media: sniff upload: %w", err))
		}
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return "", apperr.Internal(fmt.Errorf("media: rewind upload: %w", err))
		}
		mt, _, _ = mime.ParseMediaType(detected.String())
	}
	if !strings.HasPrefix(mt, "image/") && !strings.HasPrefix(mt, "video/") {
		return "", ErrUnsupportedType
	}
	if _, ok := scriptableTypes[mt]; ok {
		return "", ErrUnsupportedType
	}
	return mt, nil
}

func (s *Storage) fileName(original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if !extPattern.MatchString(ext) {
		ext = ""
		if m := mimetype.Lookup(mimeType); m != nil {
			ext = m.Extension()
		}
	}
	return fmt.Sprintf("%d-%s%s", s.now().UnixNano(), uuid.New().String(), ext)
}
