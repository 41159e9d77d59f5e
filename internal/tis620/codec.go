// Package tis620 transcodes between UTF-8 and the single-byte Thai
// encoding understood by thermal printer firmware. The mapping is the
// TIS-620 layout: ASCII passes through, the Thai block U+0E01..U+0E5B maps
// linearly into 0xA1..0xFB, and the Baht sign gets its fixed byte 0xDF.
// Anything else encodes to '?': a lossy fallback, not an error, because a
// receipt with a placeholder beats a failed print.
package tis620

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const (
	thaiFirst = 0x0E01 // ก
	thaiLast  = 0x0E5B // ๛
	byteBase  = 0xA1

	bahtSign = '฿'
	bahtByte = 0xDF

	substitute = '?'
)

// TIS620 is the printer character set as an x/text encoding, usable with
// transform readers/writers. Encode/Decode below are the common path.
var TIS620 encoding.Encoding = codec{}

type codec struct{}

func (codec) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: decoder{}}
}

func (codec) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: encoder{}}
}

// Encode converts a string to printer bytes, one byte per rune.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, encodeRune(r))
	}
	return out
}

// Decode converts printer bytes back to a string.
func Decode(b []byte) string {
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = decodeByte(c)
	}
	return string(out)
}

func encodeRune(r rune) byte {
	switch {
	case r < 0x80:
		return byte(r)
	case r == bahtSign:
		return bahtByte
	case r >= thaiFirst && r <= thaiLast:
		return byte(r-thaiFirst) + byteBase
	default:
		return substitute
	}
}

func decodeByte(b byte) rune {
	switch {
	case b < 0x80:
		return rune(b)
	case b == bahtByte:
		return bahtSign
	case b >= byteBase && b <= byteBase+(thaiLast-thaiFirst):
		return rune(b-byteBase) + thaiFirst
	default:
		return substitute
	}
}

type encoder struct{ transform.NopResetter }

func (encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				return nDst, nSrc, transform.ErrShortSrc
			}
			// Malformed input byte: substitute and move on.
			r = substitute
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = encodeRune(r)
		nDst++
		nSrc += size
	}
	return nDst, nSrc, nil
}

type decoder struct{ transform.NopResetter }

func (decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r := decodeByte(src[nSrc])
		if nDst+utf8.RuneLen(r) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc++
	}
	return nDst, nSrc, nil
}
