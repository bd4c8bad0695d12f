// Package frecency encodes and decodes the slice of the user settings proto
// that carries favorited gifs. Only the favorite_gifs subtree is interpreted;
// every other field is preserved byte-for-byte across a decode/encode round
// trip so a favorites write never clobbers unrelated settings.
//
// Field numbers follow the frecency user settings message:
//
//	FrecencyUserSettings { favorite_gifs = 2 }
//	FavoriteGifs { map<string, FavoriteGif> gifs = 1; hide_tooltip = 2 }
//	FavoriteGif  { format = 1; src = 2; width = 3; height = 4; order = 5 }
package frecency

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Madachii/giffolders/internal/model"
)

const (
	fieldFavoriteGifs = 2

	fieldGifsMap     = 1
	fieldHideTooltip = 2

	fieldGifFormat = 1
	fieldGifSrc    = 2
	fieldGifWidth  = 3
	fieldGifHeight = 4
	fieldGifOrder  = 5

	fieldMapKey   = 1
	fieldMapValue = 2
)

// Settings is the decoded top-level message.
type Settings struct {
	FavoriteGifs FavoriteGifs
	// unknown holds raw tag+value bytes of every uninterpreted field.
	unknown []byte
}

// FavoriteGifs is the favorites subtree.
type FavoriteGifs struct {
	Gifs        map[string]model.Gif
	HideTooltip bool
	unknown     []byte
}

// Unmarshal decodes a settings blob.
func Unmarshal(b []byte) (*Settings, error) {
	s := &Settings{FavoriteGifs: FavoriteGifs{Gifs: make(map[string]model.Gif)}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("settings tag: %w", protowire.ParseError(n))
		}
		if num == fieldFavoriteGifs && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(b[n:])
			if m < 0 {
				return nil, fmt.Errorf("favorite_gifs: %w", protowire.ParseError(m))
			}
			fav, err := unmarshalFavoriteGifs(v)
			if err != nil {
				return nil, err
			}
			s.FavoriteGifs = fav
			b = b[n+m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return nil, fmt.Errorf("settings field %d: %w", num, protowire.ParseError(m))
		}
		s.unknown = append(s.unknown, b[:n+m]...)
		b = b[n+m:]
	}
	return s, nil
}

// Marshal encodes the settings back into a blob.
func (s *Settings) Marshal() []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldFavoriteGifs, protowire.BytesType)
	out = protowire.AppendBytes(out, marshalFavoriteGifs(s.FavoriteGifs))
	out = append(out, s.unknown...)
	return out
}

func unmarshalFavoriteGifs(b []byte) (FavoriteGifs, error) {
	fav := FavoriteGifs{Gifs: make(map[string]model.Gif)}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fav, fmt.Errorf("favorite_gifs tag: %w", protowire.ParseError(n))
		}
		switch {
		case num == fieldGifsMap && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b[n:])
			if m < 0 {
				return fav, fmt.Errorf("gifs entry: %w", protowire.ParseError(m))
			}
			url, gif, err := unmarshalGifEntry(v)
			if err != nil {
				return fav, err
			}
			fav.Gifs[url] = gif
			b = b[n+m:]
		case num == fieldHideTooltip && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b[n:])
			if m < 0 {
				return fav, fmt.Errorf("hide_tooltip: %w", protowire.ParseError(m))
			}
			fav.HideTooltip = v != 0
			b = b[n+m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b[n:])
			if m < 0 {
				return fav, fmt.Errorf("favorite_gifs field %d: %w", num, protowire.ParseError(m))
			}
			fav.unknown = append(fav.unknown, b[:n+m]...)
			b = b[n+m:]
		}
	}
	return fav, nil
}

func marshalFavoriteGifs(fav FavoriteGifs) []byte {
	var out []byte
	for url, gif := range fav.Gifs {
		out = protowire.AppendTag(out, fieldGifsMap, protowire.BytesType)
		out = protowire.AppendBytes(out, marshalGifEntry(url, gif))
	}
	if fav.HideTooltip {
		out = protowire.AppendTag(out, fieldHideTooltip, protowire.VarintType)
		out = protowire.AppendVarint(out, 1)
	}
	out = append(out, fav.unknown...)
	return out
}

func unmarshalGifEntry(b []byte) (string, model.Gif, error) {
	var url string
	var gif model.Gif
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", gif, fmt.Errorf("map entry tag: %w", protowire.ParseError(n))
		}
		switch {
		case num == fieldMapKey && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b[n:])
			if m < 0 {
				return "", gif, fmt.Errorf("map key: %w", protowire.ParseError(m))
			}
			url = string(v)
			b = b[n+m:]
		case num == fieldMapValue && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b[n:])
			if m < 0 {
				return "", gif, fmt.Errorf("map value: %w", protowire.ParseError(m))
			}
			g, err := unmarshalGif(v)
			if err != nil {
				return "", gif, err
			}
			gif = g
			b = b[n+m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b[n:])
			if m < 0 {
				return "", gif, fmt.Errorf("map entry field %d: %w", num, protowire.ParseError(m))
			}
			b = b[n+m:]
		}
	}
	return url, gif, nil
}

func marshalGifEntry(url string, gif model.Gif) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldMapKey, protowire.BytesType)
	out = protowire.AppendString(out, url)
	out = protowire.AppendTag(out, fieldMapValue, protowire.BytesType)
	out = protowire.AppendBytes(out, marshalGif(gif))
	return out
}

func unmarshalGif(b []byte) (model.Gif, error) {
	var g model.Gif
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return g, fmt.Errorf("gif tag: %w", protowire.ParseError(n))
		}
		switch {
		case num == fieldGifSrc && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b[n:])
			if m < 0 {
				return g, fmt.Errorf("gif src: %w", protowire.ParseError(m))
			}
			g.Src = string(v)
			b = b[n+m:]
		case typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b[n:])
			if m < 0 {
				return g, fmt.Errorf("gif field %d: %w", num, protowire.ParseError(m))
			}
			switch num {
			case fieldGifFormat:
				g.Format = int(v)
			case fieldGifWidth:
				g.Width = int(v)
			case fieldGifHeight:
				g.Height = int(v)
			case fieldGifOrder:
				g.Order = v
			}
			b = b[n+m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b[n:])
			if m < 0 {
				return g, fmt.Errorf("gif field %d: %w", num, protowire.ParseError(m))
			}
			b = b[n+m:]
		}
	}
	return g, nil
}

func marshalGif(g model.Gif) []byte {
	var out []byte
	if g.Format != 0 {
		out = protowire.AppendTag(out, fieldGifFormat, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(g.Format))
	}
	if g.Src != "" {
		out = protowire.AppendTag(out, fieldGifSrc, protowire.BytesType)
		out = protowire.AppendString(out, g.Src)
	}
	if g.Width != 0 {
		out = protowire.AppendTag(out, fieldGifWidth, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(g.Width))
	}
	if g.Height != 0 {
		out = protowire.AppendTag(out, fieldGifHeight, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(g.Height))
	}
	if g.Order != 0 {
		out = protowire.AppendTag(out, fieldGifOrder, protowire.VarintType)
		out = protowire.AppendVarint(out, g.Order)
	}
	return out
}
