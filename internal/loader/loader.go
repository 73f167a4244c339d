// Package loader reads SMS batch files for the CLI. Two formats are
// supported: plain text with one message per line, and CSV with the
// message in a named or single column.
package loader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "mpesa-ledger-service/pkg/errors"
	"mpesa-ledger-service/pkg/logger"
)

// Format identifies a batch file layout.
type Format string

const (
	// FormatAuto picks the format from the file extension.
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

// Default column names accepted for the SMS text in CSV batches.
var defaultMessageColumns = []string{"message", "sms", "text", "body"}

// Config holds batch loading options.
type Config struct {
	Format Format `json:"format"`

	// MessageColumn overrides the column name lookup for CSV batches.
	// Empty means try the default aliases.
	MessageColumn string `json:"message_column,omitempty"`

	// Delimiter for CSV batches. Zero means comma.
	Delimiter rune `json:"delimiter,omitempty"`
}

// DefaultConfig returns the default loading options.
func DefaultConfig() *Config {
	return &Config{Format: FormatAuto}
}

// Validate checks the config for usable values.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatAuto, FormatText, FormatCSV:
	default:
		return fmt.Errorf("invalid batch format: %s", c.Format)
	}
	return nil
}

// Message is one raw SMS read from a batch file, tagged with its source
// line for diagnostics.
type Message struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Loader reads SMS batches.
type Loader struct {
	config *Config
	logger logger.Logger
}

// NewLoader creates a Loader with the given config.
func NewLoader(config *Config) (*Loader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "loader", config.Format, err)
	}
	return &Loader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("loader"),
	}, nil
}

// LoadMessages reads all messages from the batch file at path.
func (l *Loader) LoadMessages(path string) ([]Message, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	format := l.config.Format
	if format == FormatAuto {
		format = detectFormat(path)
	}

	l.logger.WithFields(logger.Fields{
		"file":   path,
		"format": string(format),
	}).Debug("Loading SMS batch")

	var messages []Message
	switch format {
	case FormatCSV:
		messages, err = l.readCSV(file, path)
	default:
		messages, err = l.readText(file)
	}
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return nil, apperrors.LoadError(apperrors.CodeEmptyBatch, path, 0, "", nil)
	}

	l.logger.WithFields(logger.Fields{
		"file":     path,
		"messages": len(messages),
	}).Info("Loaded SMS batch")

	return messages, nil
}

func detectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatText
}

// readText reads one message per line, skipping blank lines.
func (l *Loader) readText(r io.Reader) ([]Message, error) {
	var messages []Message

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		messages = append(messages, Message{Line: line, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryFile, apperrors.CodeFileCorrupted, "failed reading batch")
	}

	return messages, nil
}

// readCSV reads the message column from a CSV batch. Single-column files
// need no header; multi-column files must name the message column.
func (l *Loader) readCSV(r io.Reader, path string) ([]Message, error) {
	reader := csv.NewReader(r)
	if l.config.Delimiter != 0 {
		reader.Comma = l.config.Delimiter
	}
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.LoadError(apperrors.CodeInvalidFormat, path, 0, "", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	column, hasHeader := l.resolveMessageColumn(records[0])
	if column < 0 {
		if len(records[0]) == 1 {
			// Single column with no recognizable header: every row is a
			// message.
			column, hasHeader = 0, false
		} else {
			return nil, apperrors.LoadError(apperrors.CodeMissingColumn, path, 1, strings.Join(records[0], ","), nil)
		}
	}

	var messages []Message
	for i, record := range records {
		line := i + 1
		if hasHeader && i == 0 {
			continue
		}
		if column >= len(record) {
			return nil, apperrors.LoadError(apperrors.CodeInvalidData, path, line, strings.Join(record, ","), nil)
		}
		text := strings.TrimSpace(record[column])
		if text == "" {
			continue
		}
		messages = append(messages, Message{Line: line, Text: text})
	}

	return messages, nil
}

// resolveMessageColumn finds the message column index in the header row,
// returning -1 when no known column name is present.
func (l *Loader) resolveMessageColumn(header []string) (int, bool) {
	candidates := defaultMessageColumns
	if l.config.MessageColumn != "" {
		candidates = []string{l.config.MessageColumn}
	}

	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for _, candidate := range candidates {
			if name == strings.ToLower(candidate) {
				return i, true
			}
		}
	}
	return -1, false
}
