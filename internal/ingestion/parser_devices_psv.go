package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bluetab/fraudpipe/internal/domain"
)

// ParseDevicesPSV parses the pipe-delimited device metadata export.
//
// Expected header:
//
//	DEVICE_ID|TYPE|OS|BROWSER|TRUST_SCORE
func ParseDevicesPSV(data []byte, source string) ([]domain.Device, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = '|'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 5 || !strings.EqualFold(strings.TrimSpace(header[0]), "device_id") {
		return nil, &domain.SchemaMismatchError{
			Source: source,
			Key:    "device_id",
			Detail: fmt.Sprintf("expected DEVICE_ID|TYPE|OS|BROWSER|TRUST_SCORE header, got %v", header),
		}
	}

	var devices []domain.Device
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(row) < 5 {
			continue
		}

		trust, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d trust_score: %w", lineNum, err)
		}

		devices = append(devices, domain.Device{
			DeviceID:   strings.TrimSpace(row[0]),
			DeviceType: strings.ToLower(strings.TrimSpace(row[1])),
			OS:         strings.TrimSpace(row[2]),
			Browser:    strings.TrimSpace(row[3]),
			TrustScore: trust,
		})
	}

	return devices, nil
}
