package dataset

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	MNISTBaseURL = "https://ossci-datasets.s3.amazonaws.com/mnist/"
	TrainImages  = "train-images-idx3-ubyte.gz"
	TrainLabels  = "train-labels-idx1-ubyte.gz"
	TestImages   = "t10k-images-idx3-ubyte.gz"
	TestLabels   = "t10k-labels-idx1-ubyte.gz"

	imagesMagic = 2051
	labelsMagic = 2049

	// maxImageSide bounds the image sides accepted from a header; preallocImages
	// caps the initial capacity of the image slice.
	maxImageSide   = 1 << 12
	preallocImages = 1 << 16
)

// ErrFormat is returned for malformed IDX data.
var ErrFormat = errors.New("invalid idx data")

// LoadMNIST loads the MNIST training split from dir, downloading missing files
// first when download is set. Pixels are scaled to [0, 1].
func LoadMNIST(dir string, download bool) (*Dataset, error) {
	return loadSplit(dir, TrainImages, TrainLabels, download)
}

// LoadMNISTTest loads the 10k test split the same way as LoadMNIST.
func LoadMNISTTest(dir string, download bool) (*Dataset, error) {
	return loadSplit(dir, TestImages, TestLabels, download)
}

func loadSplit(dir, images, labels string, download bool) (*Dataset, error) {
	if download {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "create data dir")
		}
		for _, name := range []string{images, labels} {
			if err := Download(MNISTBaseURL+name, filepath.Join(dir, name)); err != nil {
				return nil, err
			}
		}
	}
	return LoadMNISTFiles(filepath.Join(dir, images), filepath.Join(dir, labels))
}

// LoadMNISTFiles loads a gzip-compressed IDX image file and its label file.
func LoadMNISTFiles(imagesPath, labelsPath string) (*Dataset, error) {
	var d Dataset
	err := withGzip(imagesPath, func(r io.Reader) (err error) {
		d.Images, d.Rows, d.Cols, err = ReadImages(r)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", imagesPath)
	}
	err = withGzip(labelsPath, func(r io.Reader) (err error) {
		d.Labels, err = ReadLabels(r)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", labelsPath)
	}
	if len(d.Labels) != len(d.Images) {
		return nil, errors.Wrapf(ErrFormat, "%d images but %d labels", len(d.Images), len(d.Labels))
	}
	return &d, nil
}

func withGzip(filename string, fn func(io.Reader) error) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gz.Close()
	return fn(gz)
}

// ReadImages decodes an uncompressed IDX3 image stream.
func ReadImages(r io.Reader) (images [][]float32, rows, cols int, err error) {
	var header [4]int32 // magic, count, rows, cols
	if err = binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, errors.Wrap(err, "read image header")
	}
	if header[0] != imagesMagic {
		return nil, 0, 0, errors.Wrapf(ErrFormat, "image magic number %d", header[0])
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if count < 0 || rows <= 0 || cols <= 0 {
		return nil, 0, 0, errors.Wrapf(ErrFormat, "image header %d×%d×%d", count, rows, cols)
	}

	if rows > maxImageSide || cols > maxImageSide {
		return nil, 0, 0, errors.Wrapf(ErrFormat, "image size %d×%d", rows, cols)
	}

	pixelCount := rows * cols
	pixels := make([]uint8, pixelCount)
	images = make([][]float32, 0, min(count, preallocImages))
	for i := 0; i < count; i++ {
		if _, err = io.ReadFull(r, pixels); err != nil {
			return nil, 0, 0, errors.Wrapf(err, "read image %d", i)
		}
		img := make([]float32, pixelCount)
		for j, p := range pixels {
			img[j] = float32(p) / 255.0
		}
		images = append(images, img)
	}
	return images, rows, cols, nil
}

// ReadLabels decodes an uncompressed IDX1 label stream.
func ReadLabels(r io.Reader) ([]uint8, error) {
	var header [2]int32 // magic, count
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "read label header")
	}
	if header[0] != labelsMagic {
		return nil, errors.Wrapf(ErrFormat, "label magic number %d", header[0])
	}
	if header[1] < 0 {
		return nil, errors.Wrapf(ErrFormat, "label count %d", header[1])
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, int64(header[1])))
	if err != nil {
		return nil, errors.Wrap(err, "read labels")
	}
	if n != int64(header[1]) {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "read labels: got %d of %d", n, header[1])
	}
	return buf.Bytes(), nil
}

// Download fetches url into dest unless dest already exists.
func Download(url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	log.Printf("downloading %s", url)
	resp, err := http.Get(url)
	if err != nil {
		return errors.Wrapf(err, "download %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("download %s: bad status: %s", url, resp.Status)
	}

	// Kept under a temporary name until the body is fully written.
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create download file")
	}
	if _, err = io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "download %s", url)
	}
	if err = out.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close download file")
	}
	return errors.Wrap(os.Rename(tmp, dest), "finish download")
}
