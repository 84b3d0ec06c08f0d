package image

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"
)

var log = commonlog.GetLogger("godex.image")

var (
	magicPlain      = []byte("GDX1")
	magicCompressed = []byte("GDXZ")
)

// ErrChecksum is returned when an image's content does not match its
// recorded checksum.
var ErrChecksum = errors.New("image checksum mismatch")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// checksum hashes the canonical encoding of img with Checksum zeroed.
func checksum(img *Image) (uint64, error) {
	c := *img
	c.Checksum = 0
	b, err := encMode.Marshal(&c)
	if err != nil {
		return 0, errors.Wrap(err, "encoding image")
	}
	return xxh3.Hash(b), nil
}

// Marshal encodes img, stamping its checksum.
func Marshal(img *Image, compress bool) ([]byte, error) {
	if img.Version == 0 {
		img.Version = Version
	}
	sum, err := checksum(img)
	if err != nil {
		return nil, err
	}
	img.Checksum = sum
	body, err := encMode.Marshal(img)
	if err != nil {
		return nil, errors.Wrap(err, "encoding image")
	}
	if !compress {
		return append(append([]byte(nil), magicPlain...), body...), nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd encoder")
	}
	defer enc.Close()
	out := append([]byte(nil), magicCompressed...)
	out = enc.EncodeAll(body, out)
	log.Debugf("compressed image %s: %d -> %d bytes", img.Location, len(body), len(out))
	return out, nil
}

// Unmarshal decodes an image and verifies its checksum.
func Unmarshal(data []byte) (*Image, error) {
	var body []byte
	switch {
	case bytes.HasPrefix(data, magicPlain):
		body = data[len(magicPlain):]
	case bytes.HasPrefix(data, magicCompressed):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd decoder")
		}
		defer dec.Close()
		body, err = dec.DecodeAll(data[len(magicCompressed):], nil)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing image")
		}
	default:
		return nil, errors.New("not an image: bad magic")
	}

	var img Image
	if err := cbor.Unmarshal(body, &img); err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	if img.Version != Version {
		return nil, errors.Errorf("unsupported image version %d", img.Version)
	}
	sum, err := checksum(&img)
	if err != nil {
		return nil, err
	}
	if sum != img.Checksum {
		return nil, errors.Wrapf(ErrChecksum, "%s: got %016x, recorded %016x", img.Location, sum, img.Checksum)
	}
	return &img, nil
}

// Write encodes img to w.
func Write(w io.Writer, img *Image, compress bool) error {
	b, err := Marshal(img, compress)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return errors.Wrap(err, "writing image")
}

// Read decodes an image from r.
func Read(r io.Reader) (*Image, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading image")
	}
	return Unmarshal(b)
}

// Load reads an image file.
func Load(path string) (*Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading image %s", path)
	}
	img, err := Unmarshal(b)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if img.Location == "" {
		img.Location = path
	}
	log.Infof("loaded image %s: %d classes", path, len(img.Classes))
	return img, nil
}

// Save writes img to path; names ending in ".gdxz" are compressed.
func Save(path string, img *Image) error {
	compress := len(path) > 5 && path[len(path)-5:] == ".gdxz"
	b, err := Marshal(img, compress)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, b, 0o644), "saving image %s", path)
}
