package tis620

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/transform"
)

func TestASCIIPassthrough(t *testing.T) {
	s := "Receipt #0042 TOTAL: 100.00"

	encoded := Encode(s)
	require.Len(t, encoded, len(s))
	for i := 0; i < len(s); i++ {
		assert.Equal(t, s[i], encoded[i], "byte %d should equal the character code", i)
	}
}

func TestThaiBlockMapping(t *testing.T) {
	// ก (U+0E01) is the first consonant and must land on 0xA1.
	assert.Equal(t, []byte{0xA1}, Encode("ก"))

	// ๛ (U+0E5B) is the last codepoint of the span.
	assert.Equal(t, []byte{0xFB}, Encode("๛"))

	// น้ำแข็ง ("ice") exercises consonants, vowels and tone marks.
	encoded := Encode("น้ำแข็ง")
	require.Len(t, encoded, 7)
	for _, b := range encoded {
		assert.GreaterOrEqual(t, b, byte(0xA1))
	}
}

func TestBahtSign(t *testing.T) {
	// The currency sign followed by an ASCII amount: fixed byte 0xDF, then
	// the amount unchanged.
	encoded := Encode("฿100.00")

	want := append([]byte{0xDF}, []byte("100.00")...)
	assert.Equal(t, want, encoded)
}

func TestFallbackMapping(t *testing.T) {
	for _, s := range []string{"é", "漢", "😀", "Ω"} {
		encoded := Encode(s)
		require.Len(t, encoded, 1, "input %q", s)
		assert.Equal(t, byte(0x3F), encoded[0], "input %q", s)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain ascii 0123456789",
		"น้ำแข็งหลอด 10 กก.",
		"฿1,250.50",
		"ร้านน้ำแข็งชัยโย โทร. 081-234-5678",
		"mixed ไทย and english ฿99",
	}

	for _, s := range cases {
		assert.Equal(t, s, Decode(Encode(s)), "round trip of %q", s)
	}
}

func TestEncodingTransformer(t *testing.T) {
	got, _, err := transform.String(TIS620.NewEncoder(), "฿5")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDF, '5'}, []byte(got))

	back, _, err := transform.Bytes(TIS620.NewDecoder(), []byte{0xDF, '5'})
	require.NoError(t, err)
	assert.Equal(t, "฿5", string(back))
}

func TestDecodeUnmappedByte(t *testing.T) {
	// Bytes with no TIS-620 assignment decode to the substitute rune.
	assert.Equal(t, "?", Decode([]byte{0x80}))
	assert.Equal(t, "?", Decode([]byte{0xFF}))
}
