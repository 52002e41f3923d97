package clipboard

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/png"

	"golang.org/x/image/bmp"
)

// ErrInvalidDIB is returned when device-independent bitmap data is malformed.
var ErrInvalidDIB = errors.New("invalid DIB data")

const (
	bmpFileHeaderSize = 14
	biBitFields       = 3
	bitmapInfoSize    = 40
)

// DIBToPNG converts a packed device-independent bitmap (the CF_DIB
// clipboard format) into PNG bytes.
func DIBToPNG(dib []byte) ([]byte, error) {
	if len(dib) < bitmapInfoSize {
		return nil, ErrInvalidDIB
	}

	headerSize := int(binary.LittleEndian.Uint32(dib[0:4]))
	if headerSize < bitmapInfoSize || headerSize > len(dib) {
		return nil, fmt.Errorf("%w: header size %d", ErrInvalidDIB, headerSize)
	}

	bitCount := int(binary.LittleEndian.Uint16(dib[14:16]))
	compression := binary.LittleEndian.Uint32(dib[16:20])
	colorsUsed := int(binary.LittleEndian.Uint32(dib[32:36]))

	offset := bmpFileHeaderSize + headerSize
	if compression == biBitFields && headerSize == bitmapInfoSize {
		offset += 12
	}
	if bitCount <= 8 {
		if colorsUsed == 0 {
			colorsUsed = 1 << bitCount
		}
		offset += colorsUsed * 4
	}

	file := make([]byte, bmpFileHeaderSize, bmpFileHeaderSize+len(dib))
	file[0], file[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(file[2:6], uint32(bmpFileHeaderSize+len(dib)))
	binary.LittleEndian.PutUint32(file[10:14], uint32(offset))
	file = append(file, dib...)

	img, err := bmp.Decode(bytes.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
