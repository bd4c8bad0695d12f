package frecency

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Madachii/giffolders/internal/model"
)

func TestRoundTrip_Gifs(t *testing.T) {
	t.Parallel()
	in := &Settings{FavoriteGifs: FavoriteGifs{
		Gifs: map[string]model.Gif{
			"https://x.test/a.gif": {Src: "https://cdn.test/a.mp4", Width: 498, Height: 282, Format: 2, Order: 100_001},
			"https://x.test/b.gif": {Src: "https://cdn.test/b.mp4", Format: 1, Order: 7},
		},
		HideTooltip: true,
	}}

	out, err := Unmarshal(in.Marshal())
	require.NoError(t, err)
	require.Equal(t, in.FavoriteGifs.Gifs, out.FavoriteGifs.Gifs)
	require.True(t, out.FavoriteGifs.HideTooltip)
}

func TestUnmarshal_Empty(t *testing.T) {
	t.Parallel()
	s, err := Unmarshal(nil)
	require.NoError(t, err)
	require.Empty(t, s.FavoriteGifs.Gifs)
}

func TestUnmarshal_PreservesUnknownFields(t *testing.T) {
	t.Parallel()

	// a blob with a foreign top-level field (9), a favorites subtree carrying
	// a foreign field (7), and one gif
	var gif []byte
	gif = protowire.AppendTag(gif, 5, protowire.VarintType) // order
	gif = protowire.AppendVarint(gif, 42)

	var entry []byte
	entry = protowire.AppendTag(entry, 1, protowire.BytesType)
	entry = protowire.AppendString(entry, "https://x.test/a.gif")
	entry = protowire.AppendTag(entry, 2, protowire.BytesType)
	entry = protowire.AppendBytes(entry, gif)

	var fav []byte
	fav = protowire.AppendTag(fav, 1, protowire.BytesType)
	fav = protowire.AppendBytes(fav, entry)
	fav = protowire.AppendTag(fav, 7, protowire.VarintType)
	fav = protowire.AppendVarint(fav, 99)

	var blob []byte
	blob = protowire.AppendTag(blob, 9, protowire.BytesType)
	blob = protowire.AppendString(blob, "sticker settings live here")
	blob = protowire.AppendTag(blob, 2, protowire.BytesType)
	blob = protowire.AppendBytes(blob, fav)

	s, err := Unmarshal(blob)
	require.NoError(t, err)
	require.Equal(t, uint64(42), s.FavoriteGifs.Gifs["https://x.test/a.gif"].Order)

	// mutate favorites, re-encode, decode again: foreign fields survive
	s.FavoriteGifs.Gifs["https://x.test/b.gif"] = model.Gif{Order: 43}
	re, err := Unmarshal(s.Marshal())
	require.NoError(t, err)
	require.Len(t, re.FavoriteGifs.Gifs, 2)

	// the foreign top-level field is still present byte-for-byte
	var want []byte
	want = protowire.AppendTag(want, 9, protowire.BytesType)
	want = protowire.AppendString(want, "sticker settings live here")
	require.True(t, bytes.Contains(s.Marshal(), want), "unknown top-level field dropped")

	var wantFav []byte
	wantFav = protowire.AppendTag(wantFav, 7, protowire.VarintType)
	wantFav = protowire.AppendVarint(wantFav, 99)
	require.True(t, bytes.Contains(s.Marshal(), wantFav), "unknown favorites field dropped")
}

func TestUnmarshal_Truncated(t *testing.T) {
	t.Parallel()
	var blob []byte
	blob = protowire.AppendTag(blob, 2, protowire.BytesType)
	blob = append(blob, 0xFF) // bogus length
	_, err := Unmarshal(blob)
	require.Error(t, err)
}
