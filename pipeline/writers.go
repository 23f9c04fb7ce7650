package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/mmpvdesign/dsa-scrape/models"
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []models.ProjectRecord) error
	Close() error
	Validate() error
}

// OutputFilename builds the run's export path:
// dsa_projects_{joined district codes}_{timestamp}.{ext}. Dashes inside the
// district codes are dropped, matching the original report naming.
func OutputFilename(dir string, clientIDs []string, ext string, now time.Time) string {
	codes := strings.ReplaceAll(strings.Join(clientIDs, "_"), "-", "")
	name := fmt.Sprintf("dsa_projects_%s_%s.%s", codes, now.Format("20060102_150405"), ext)
	return filepath.Join(dir, name)
}

// CSVWriter writes merged records to CSV through csvutil.
type CSVWriter struct {
	filename string
	file     *os.File
	writer   *csv.Writer
	encoder  *csvutil.Encoder
	detailed bool
	mu       sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row. With
// detailed set, the extended column set is emitted.
func NewCSVWriter(filename string, detailed bool) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	encoder := csvutil.NewEncoder(writer)

	var headerErr error
	if detailed {
		headerErr = encoder.EncodeHeader(DetailedRow{})
	} else {
		headerErr = encoder.EncodeHeader(Row{})
	}
	if headerErr != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", headerErr)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		filename: filename,
		file:     f,
		writer:   writer,
		encoder:  encoder,
		detailed: detailed,
	}, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []models.ProjectRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, record := range records {
		var err error
		if cw.detailed {
			err = cw.encoder.Encode(DetailedRowFromRecord(record))
		} else {
			err = cw.encoder.Encode(RowFromRecord(record))
		}
		if err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header. It stats the
// path rather than the handle so it works after Close.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.filename)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	filename string
	file     *os.File
	writer   *bufio.Writer
	encoder  *json.Encoder
	detailed bool
	mu       sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string, detailed bool) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		filename: filename,
		file:     f,
		writer:   buffer,
		encoder:  json.NewEncoder(buffer),
		detailed: detailed,
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []models.ProjectRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, record := range records {
		var err error
		if jw.detailed {
			err = jw.encoder.Encode(DetailedRowFromRecord(record))
		} else {
			err = jw.encoder.Encode(RowFromRecord(record))
		}
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := os.Stat(jw.filename)
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
