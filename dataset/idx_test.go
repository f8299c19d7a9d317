package dataset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func idxImages(t *testing.T, magic uint32, n, rows, cols int, pixels []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	header := []uint32{magic, uint32(n), uint32(rows), uint32(cols)}
	if err := binary.Write(&buf, binary.BigEndian, header); err != nil {
		t.Fatal(err)
	}
	buf.Write(pixels)
	return buf.Bytes()
}

func idxLabels(t *testing.T, labels []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, []uint32{idxLabelsMagic, uint32(len(labels))}); err != nil {
		t.Fatal(err)
	}
	buf.Write(labels)
	return buf.Bytes()
}

func gzipped(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadIDXImages(t *testing.T) {
	pixels := []byte{0, 255, 127, 128, 51, 204, 0, 255}
	raw := idxImages(t, idxImagesMagic, 2, 2, 2, pixels)

	for name, input := range map[string][]byte{"plain": raw, "gzip": gzipped(t, raw)} {
		images, err := ReadIDXImages(bytes.NewReader(input))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if shape := images.Shape(); len(shape) != 4 || shape[0] != 2 || shape[1] != 2 || shape[2] != 2 || shape[3] != 1 {
			t.Fatalf("%s: unexpected shape %v", name, shape)
		}
		data := images.Data().([]float64)
		for i, p := range pixels {
			want := (float64(p) - 127.5) / 127.5
			if math.Abs(data[i]-want) > 1e-12 {
				t.Fatalf("%s: pixel #%d: expected %v, got %v", name, i, want, data[i])
			}
			if data[i] < -1 || data[i] > 1 {
				t.Fatalf("%s: pixel #%d is out of [-1, 1]: %v", name, i, data[i])
			}
		}
		if data[0] != -1 || data[1] != 1 {
			t.Fatalf("%s: 0 and 255 must map onto -1 and 1, got %v and %v", name, data[0], data[1])
		}
	}
}

func TestReadIDXImagesErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"labels magic", idxImages(t, idxLabelsMagic, 1, 1, 1, []byte{0})},
		{"truncated pixels", idxImages(t, idxImagesMagic, 2, 2, 2, []byte{1, 2, 3})},
		{"truncated header", []byte{0, 0, 8}},
		{"empty", nil},
		{"huge dimensions", idxImages(t, idxImagesMagic, 0x80000000, 0x80000000, 2, nil)},
		{"huge image", idxImages(t, idxImagesMagic, 1, 1<<11, 1<<11, []byte{0})},
		{"zero rows", idxImages(t, idxImagesMagic, 1, 0, 5, nil)},
		{"no images", idxImages(t, idxImagesMagic, 0, 2, 2, nil)},
		{"huge count", idxImages(t, idxImagesMagic, 0xffffffff, 2, 2, []byte{1, 2, 3, 4})},
	}
	for _, tt := range tests {
		if _, err := ReadIDXImages(bytes.NewReader(tt.input)); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestLoadIDX(t *testing.T) {
	dir := t.TempDir()
	imagesPath := filepath.Join(dir, "images.gz")
	labelsPath := filepath.Join(dir, "labels")
	if err := os.WriteFile(imagesPath, gzipped(t, idxImages(t, idxImagesMagic, 3, 1, 2, []byte{0, 0, 1, 1, 2, 2})), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(labelsPath, idxLabels(t, []byte{4, 9, 4}), 0o644); err != nil {
		t.Fatal(err)
	}
	images, err := LoadIDXImages(imagesPath)
	if err != nil {
		t.Fatal(err)
	}
	if images.Shape()[0] != 3 {
		t.Fatalf("expected 3 images, got shape %v", images.Shape())
	}
	labels, err := LoadIDXLabels(labelsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(labels, []byte{4, 9, 4}) {
		t.Fatalf("unexpected labels %v", labels)
	}
	if _, err := LoadIDXLabels(imagesPath); err == nil {
		t.Fatal("images file must not be accepted as labels")
	}
	truncated := filepath.Join(dir, "truncated")
	if err := os.WriteFile(truncated, idxLabels(t, []byte{1, 2, 3})[:10], 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIDXLabels(truncated); err == nil {
		t.Fatal("truncated labels must fail")
	}
	if _, err := LoadIDXImages(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("missing file must fail")
	}
}
