package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// idxImagesMagic unsigned byte data with 3 dimensions
	idxImagesMagic = 0x00000803
	// idxLabelsMagic unsigned byte data with 1 dimension
	idxLabelsMagic = 0x00000801

	maxIDXSide        = 1 << 12
	maxIDXImageSize   = 1 << 20
	idxPreallocImages = 1 << 10
)

// ReadIDXImages Reads IDX3 image file (MNIST, Fashion-MNIST) from r. Gzipped input is detected automatically.
//
// Output has shape [n, rows, cols, 1]; pixels are scaled from [0, 255] to [-1, 1] which matches Tanh output of generator.
//
func ReadIDXImages(r io.Reader) (*tensor.Dense, error) {
	src, closer, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	var header [4]uint32
	if err := binary.Read(src, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "Can't read IDX header")
	}
	if header[0] != idxImagesMagic {
		return nil, errors.Errorf("Unexpected IDX magic number 0x%08x for images, expected 0x%08x", header[0], idxImagesMagic)
	}
	n, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if rows <= 0 || cols <= 0 || rows > maxIDXSide || cols > maxIDXSide || rows*cols > maxIDXImageSize {
		return nil, errors.Errorf("Unsupported IDX image size %dx%d", rows, cols)
	}
	if n <= 0 {
		return nil, errors.Errorf("IDX file holds no images")
	}
	// n comes from the header: memory grows with data actually read, not with the declared count
	size := rows * cols
	raw := make([]byte, size)
	data := make([]float64, 0, minInt(n, idxPreallocImages)*size)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(src, raw); err != nil {
			return nil, errors.Wrapf(err, "Can't read image #%d of %d (%dx%d)", i, n, rows, cols)
		}
		for _, v := range raw {
			data = append(data, (float64(v)-127.5)/127.5)
		}
	}
	return tensor.New(tensor.WithShape(n, rows, cols, 1), tensor.WithBacking(data)), nil
}

// ReadIDXLabels Reads IDX1 label file
func ReadIDXLabels(r io.Reader) ([]byte, error) {
	src, closer, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	var header [2]uint32
	if err := binary.Read(src, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "Can't read IDX header")
	}
	if header[0] != idxLabelsMagic {
		return nil, errors.Errorf("Unexpected IDX magic number 0x%08x for labels, expected 0x%08x", header[0], idxLabelsMagic)
	}
	n := int(header[1])
	labels, err := io.ReadAll(io.LimitReader(src, int64(n)))
	if err != nil {
		return nil, errors.Wrap(err, "Can't read labels")
	}
	if len(labels) != n {
		return nil, errors.Errorf("IDX header declares %d labels, got %d", n, len(labels))
	}
	return labels, nil
}

// LoadIDXImages Reads IDX3 image file from disk
func LoadIDXImages(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open '%s'", path)
	}
	defer f.Close()
	images, err := ReadIDXImages(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read '%s'", path)
	}
	return images, nil
}

func maybeGunzip(r io.Reader) (io.Reader, io.Closer, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't read IDX header")
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return br, nil, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't open gzip stream")
	}
	return gz, gz, nil
}

// LoadIDXLabels Reads IDX1 label file from disk
func LoadIDXLabels(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open '%s'", path)
	}
	defer f.Close()
	labels, err := ReadIDXLabels(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read '%s'", path)
	}
	return labels, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
