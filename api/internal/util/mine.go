package util

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
)

// SniffImageFormat returns png|jpeg|gif|bmp|tiff|webp|pdf or "" by magic bytes.
func SniffImageFormat(b []byte) string {
	switch {
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return "jpeg"
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(b) >= 6 && (bytes.Equal(b[:6], []byte("GIF87a")) || bytes.Equal(b[:6], []byte("GIF89a"))):
		return "gif"
	case len(b) >= 2 && b[0] == 'B' && b[1] == 'M':
		return "bmp"
	case len(b) >= 4 && (bytes.Equal(b[:4], []byte{'I', 'I', 0x2A, 0x00}) || bytes.Equal(b[:4], []byte{'M', 'M', 0x00, 0x2A})):
		return "tiff"
	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return "webp"
	case len(b) >= 5 && bytes.Equal(b[:5], []byte("%PDF-")):
		return "pdf"
	}
	return ""
}

// SniffMimeForOCR: формат в терминах Yandex Vision: JPEG | PNG | PDF.
func SniffMimeForOCR(b []byte) string {
	switch SniffImageFormat(b) {
	case "jpeg":
		return "JPEG"
	case "png":
		return "PNG"
	case "pdf":
		return "PDF"
	}
	return ""
}

func SniffMimeHTTP(b []byte) string {
	switch f := SniffImageFormat(b); f {
	case "":
		return "application/octet-stream"
	case "pdf":
		return "application/pdf"
	default:
		return "image/" + f
	}
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// DecodeBase64MaybeDataURL декодирует base64. Если это data:URI, вернёт MIME из префикса.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	// Стандартная база64, затем URL-safe и без паддинга
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, hintMIME, nil
	}
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b2, err2 := enc.DecodeString(s); err2 == nil {
			return b2, hintMIME, nil
		}
	}
	return nil, "", err
}

// PickMIME берём явный MIME, затем из data:URI, иначе детектим по байтам.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		if m := SniffMimeHTTP(data); m != "application/octet-stream" {
			return m
		}
		return http.DetectContentType(data)
	}
	return "image/jpeg"
}
