package image

import (
	"fmt"

	"github.com/fortiblox/zforth/internal/types"
	"github.com/klauspost/compress/zstd"
)

// MarshalBinary encodes the live words little-endian and compresses them
// with zstd. The result restores into any storage of at least Size words.
func (m *Image) MarshalBinary() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	words := m.words[:m.Size()]
	raw := make([]byte, len(words)*types.WordBytes)
	for i, w := range words {
		types.PutWord(raw[i*types.WordBytes:], w)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

// UnmarshalBinary restores a snapshot produced by MarshalBinary into the
// image's existing storage. The storage is left untouched unless the
// snapshot passes the header checks.
func (m *Image) UnmarshalBinary(data []byte) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("%w: decompress: %v", ErrInvalidImage, err)
	}
	if len(raw)%types.WordBytes != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of words", ErrInvalidImage, len(raw))
	}
	n := len(raw) / types.WordBytes
	if n > len(m.words) {
		return fmt.Errorf("%w: snapshot of %d words, storage of %d", ErrImageTooSmall, n, len(m.words))
	}

	words := make([]Word, n)
	for i := range words {
		words[i] = types.GetWord(raw[i*types.WordBytes:])
	}
	tmp := New(words)
	if err := tmp.Validate(); err != nil {
		return err
	}
	if int(tmp.Size()) != n {
		return fmt.Errorf("%w: header size %d, snapshot holds %d words", ErrInvalidImage, tmp.Size(), n)
	}
	copy(m.words, words)
	return nil
}
