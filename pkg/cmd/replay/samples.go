package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mpapenbr/trackline/pkg/service"
)

var ErrInvalidSample = errors.New("invalid sample")

// ReadSamplesFile reads samples from a CSV file. See ReadSamples.
func ReadSamplesFile(file string) ([]service.Sample, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSamples(f)
}

// ReadSamples reads rows of t_ms,x,y. A first row that is not numeric is
// treated as header. Empty lines and lines starting with # are ignored.
func ReadSamples(r io.Reader) ([]service.Sample, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true
	ret := []service.Sample{}
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSample, err)
		}
		s, err := parseSample(rec)
		if err != nil {
			if line == 1 && isHeader(rec) {
				continue
			}
			pos, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidSample, pos, err)
		}
		ret = append(ret, s)
	}
}

func parseSample(rec []string) (service.Sample, error) {
	t, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(rec[0], 64)
		if ferr != nil {
			return service.Sample{}, err
		}
		t = int64(f)
	}
	x, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return service.Sample{}, err
	}
	y, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return service.Sample{}, err
	}
	return service.Sample{TimeMs: t, X: x, Y: y}, nil
}

func isHeader(rec []string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	return err != nil
}
