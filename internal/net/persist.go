package net

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/FlavioCFOliveira/GoSparseAE/internal/activations"
	"github.com/FlavioCFOliveira/GoSparseAE/internal/layer"
	"github.com/pkg/errors"
)

const (
	fileMagic   = "GoSparseAE"
	fileVersion = int32(1)
)

// ErrBadFormat is returned when a parameter file is not recognised.
var ErrBadFormat = errors.New("bad parameter file")

// LayerConfig holds the configuration needed to reconstruct a layer.
type LayerConfig struct {
	Type       string
	InSize     int
	OutSize    int
	Activation string
}

// ExtractLayerConfig extracts the configuration from a dense layer.
func ExtractLayerConfig(d *layer.Dense) LayerConfig {
	return LayerConfig{
		Type:       "Dense",
		InSize:     d.InSize(),
		OutSize:    d.OutSize(),
		Activation: d.Activation().Name(),
	}
}

func (c LayerConfig) check() error {
	if c.Type != "Dense" {
		return errors.Wrapf(ErrBadFormat, "unsupported layer type %q", c.Type)
	}
	if c.InSize <= 0 || c.OutSize <= 0 {
		return errors.Wrapf(ErrBadFormat, "invalid layer shape %d -> %d", c.InSize, c.OutSize)
	}
	if _, ok := activations.ByName(c.Activation); !ok {
		return errors.Wrapf(ErrBadFormat, "unknown activation %q", c.Activation)
	}
	return nil
}

// Save writes the model to a file. The optimizer state is not saved.
func (a *Autoencoder) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := a.EncodeParams(file); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "failed to close file")
}

// EncodeParams writes the header, the layer configs and then every parameter as one
// flat []float64 using gob encoding.
func (a *Autoencoder) EncodeParams(w io.Writer) error {
	encoder := gob.NewEncoder(w)

	if err := encoder.Encode(fileMagic); err != nil {
		return errors.Wrap(err, "failed to encode header")
	}
	if err := encoder.Encode(fileVersion); err != nil {
		return errors.Wrap(err, "failed to encode version")
	}

	cfgs := make([]LayerConfig, 0, 2)
	for _, l := range a.Layers() {
		cfgs = append(cfgs, ExtractLayerConfig(l))
	}
	if err := encoder.Encode(cfgs); err != nil {
		return errors.Wrap(err, "failed to encode layers")
	}

	if err := encoder.Encode(a.Params()); err != nil {
		return errors.Wrap(err, "failed to encode params")
	}
	return nil
}

// Load reads a model written by Save.
func Load(filename string) (*Autoencoder, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return DecodeParams(file)
}

// DecodeParams reads a model written by EncodeParams.
func DecodeParams(r io.Reader) (*Autoencoder, error) {
	decoder := gob.NewDecoder(r)

	var magic string
	if err := decoder.Decode(&magic); err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	if magic != fileMagic {
		return nil, errors.Wrapf(ErrBadFormat, "header %q", magic)
	}

	var version int32
	if err := decoder.Decode(&version); err != nil {
		return nil, errors.Wrap(err, "failed to read version")
	}
	if version != fileVersion {
		return nil, errors.Wrapf(ErrBadFormat, "unsupported version %d", version)
	}

	var cfgs []LayerConfig
	if err := decoder.Decode(&cfgs); err != nil {
		return nil, errors.Wrap(err, "failed to read layers")
	}
	if len(cfgs) != 2 {
		return nil, errors.Wrapf(ErrBadFormat, "expected 2 layers, got %d", len(cfgs))
	}
	for _, c := range cfgs {
		if err := c.check(); err != nil {
			return nil, err
		}
	}
	enc, dec := cfgs[0], cfgs[1]
	if enc.OutSize != dec.InSize || enc.InSize != dec.OutSize {
		return nil, errors.Wrapf(ErrBadFormat, "encoder %d->%d does not mirror decoder %d->%d",
			enc.InSize, enc.OutSize, dec.InSize, dec.OutSize)
	}

	want, ok := paramCount(enc, dec)
	if !ok {
		return nil, errors.Wrapf(ErrBadFormat, "layer sizes %d->%d->%d are too large", enc.InSize, enc.OutSize, dec.OutSize)
	}

	var params []float64
	if err := decoder.Decode(&params); err != nil {
		return nil, errors.Wrap(err, "failed to read parameters")
	}
	if len(params) != want {
		return nil, errors.Wrapf(ErrBadFormat, "got %d parameters, want %d", len(params), want)
	}

	encAct, _ := activations.ByName(enc.Activation)
	decAct, _ := activations.ByName(dec.Activation)
	a := &Autoencoder{
		encoder: layer.NewDense(enc.InSize, enc.OutSize, encAct, nil),
		decoder: layer.NewDense(dec.InSize, dec.OutSize, decAct, nil),
	}
	a.SetParams(params)
	return a, nil
}

// maxParams bounds the parameter count accepted from a file.
const maxParams = 1 << 28

// paramCount returns in*out+out summed over both layers, or false when it
// exceeds maxParams.
func paramCount(cfgs ...LayerConfig) (int, bool) {
	total := 0
	for _, c := range cfgs {
		if c.InSize > maxParams/c.OutSize {
			return 0, false
		}
		total += c.InSize*c.OutSize + c.OutSize
		if total > maxParams {
			return 0, false
		}
	}
	return total, true
}
