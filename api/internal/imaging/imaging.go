// Package imaging приводит входящие фото к ограниченному размеру перед отправкой в модель.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxSide       = 800
	Quality       = 70
	MaxTotalBytes = 8_000_000
)

var ErrNotBase64 = errors.New("image is not base64 encoded")

type Image struct {
	Data []byte
	MIME string
}

func (i Image) Base64() string { return base64.StdEncoding.EncodeToString(i.Data) }

func (i Image) DataURL() string { return "data:" + i.MIME + ";base64," + i.Base64() }

// Hash - sha256 байтов после нормализации; ключ кэша расшифровок.
func (i Image) Hash() string {
	h := sha256.Sum256(i.Data)
	return hex.EncodeToString(h[:])
}

// Normalize декодирует base64 (в том числе data:URI), вписывает картинку в MaxSide x MaxSide
// без увеличения и перекодирует в JPEG. Если картинку не удалось разобрать, байты идут как есть.
func Normalize(encoded string) (Image, error) {
	raw, hint, err := DecodeBase64MaybeDataURL(encoded)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrNotBase64, err)
	}
	if len(raw) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrNotBase64)
	}
	return FromBytes(raw, hint), nil
}

// FromBytes - то же для уже декодированных байтов (фото из Telegram).
func FromBytes(raw []byte, hint string) Image {
	out, err := Resize(raw, MaxSide, Quality)
	if err != nil {
		return Image{Data: raw, MIME: PickMIME("", hint, raw)}
	}
	return Image{Data: out, MIME: "image/jpeg"}
}

// NormalizeAll нормализует пачку; ошибка - первая картинка, которая не base64.
func NormalizeAll(encoded []string) ([]Image, error) {
	out := make([]Image, 0, len(encoded))
	for i, s := range encoded {
		img, err := Normalize(s)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out = append(out, img)
	}
	return out, nil
}

func TotalSize(images []Image) int {
	n := 0
	for _, img := range images {
		n += len(img.Data)
	}
	return n
}

func Resize(data []byte, maxSide, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}

	dst := image.Image(src)
	if w > maxSide || h > maxSide {
		nw, nh := fit(w, h, maxSide)
		rgba := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(rgba, rgba.Bounds(), src, b, draw.Over, nil)
		dst = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fit(w, h, side int) (int, int) {
	if w >= h {
		nh := h * side / w
		if nh < 1 {
			nh = 1
		}
		return side, nh
	}
	nw := w * side / h
	if nw < 1 {
		nw = 1
	}
	return nw, side
}

// DecodeBase64MaybeDataURL декодирует base64. Если это data:URI, вернёт MIME из префикса.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
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
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	}
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, "", err
	}
	return b, hintMIME, nil
}

// PickMIME: явный MIME, затем из data:URI, иначе по байтам.
func PickMIME(explicit, hint string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "image/jpeg"
}
