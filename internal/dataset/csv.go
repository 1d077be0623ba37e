package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// LoadCSV loads flattened images from a CSV file, one image per row.
// labelCol is the index of the label column (-1 when there is none); every other
// column is a pixel value used as-is. rows*cols must equal the pixel column count.
// hasHeader skips the first line if true.
func LoadCSV(filename string, labelCol int, hasHeader bool, rows, cols int) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv")
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, errors.New("csv file has no data rows")
	}

	numCols := len(records[startRow])
	pixels := numCols
	if labelCol >= 0 {
		if labelCol >= numCols {
			return nil, errors.Errorf("label column %d out of range (%d columns)", labelCol, numCols)
		}
		pixels--
	}
	if rows*cols != pixels {
		return nil, errors.Errorf("%d pixel columns do not match a %dx%d image", pixels, rows, cols)
	}

	d := &Dataset{
		Images: make([][]float32, 0, len(records)-startRow),
		Labels: make([]uint8, 0, len(records)-startRow),
		Rows:   rows,
		Cols:   cols,
	}
	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, errors.Errorf("inconsistent number of columns at row %d", i)
		}

		img := make([]float32, 0, pixels)
		var label uint8
		for j, valStr := range record {
			if j == labelCol {
				v, err := strconv.ParseUint(valStr, 10, 8)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to parse label at row %d", i)
				}
				label = uint8(v)
				continue
			}
			val, err := strconv.ParseFloat(valStr, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse value at row %d, col %d", i, j)
			}
			img = append(img, float32(val))
		}
		d.Images = append(d.Images, img)
		d.Labels = append(d.Labels, label)
	}
	return d, nil
}
