package session

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "ceaiinsights/internal/errors"
)

// Messages shown to the user for intake failures
const (
	MsgInvalidFileType = "Invalid file type. Please upload a CSV file."
	MsgEmptyFile       = "Error reading file. Please ensure it's a valid text-based CSV."
	MsgUnreadableFile  = "Failed to read file. Please try again."
	MsgNoData          = "No CSV data to analyze. Please upload a file first."
	MsgInProgress      = "An analysis is already in progress."
)

// CSVMediaType is the media type accepted besides a .csv name
const CSVMediaType = "text/csv"

// IsCSV reports whether a file with this name and media type is accepted
func IsCSV(name, mediaType string) bool {
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil && mt == CSVMediaType {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// ErrInvalidFileType is returned for files that are neither text/csv nor named *.csv
func ErrInvalidFileType() error {
	return apperrors.New(apperrors.CodeInvalidFileType, MsgInvalidFileType)
}

func errEmptyFile() error {
	return apperrors.New(apperrors.CodeEmptyFile, MsgEmptyFile)
}

func errUnreadable(cause error) error {
	return &apperrors.AppError{Code: apperrors.CodeUnreadableFile, Message: MsgUnreadableFile, Cause: cause}
}

// FileTooLargeMessage is the user message for an upload over limit bytes
func FileTooLargeMessage(limit int64) string {
	if limit >= 1<<20 && limit%(1<<20) == 0 {
		return fmt.Sprintf("File is too large. Maximum size is %d MB.", limit>>20)
	}
	return fmt.Sprintf("File is too large. Maximum size is %d bytes.", limit)
}

// ProgressReader reports the fraction of total bytes read so far, 0-100. Reported
// values never decrease and never exceed 100.
type ProgressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       float64
	onProgress func(float64)
}

// NewProgressReader wraps r. With total <= 0 no progress is reported.
func NewProgressReader(r io.Reader, total int64, onProgress func(float64)) *ProgressReader {
	return &ProgressReader{r: r, total: total, onProgress: onProgress}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && p.onProgress != nil && n > 0 {
		pct := float64(p.read) / float64(p.total) * 100
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			p.onProgress(pct)
		}
	}
	return n, err
}

// ReadCSV reads the whole of r as text. size is the declared length used for
// progress and may be zero when unknown; maxBytes <= 0 disables the size cap.
func ReadCSV(r io.Reader, size, maxBytes int64, onProgress func(float64)) (string, error) {
	if maxBytes > 0 && size > maxBytes {
		return "", ErrFileTooLarge(maxBytes)
	}

	src := io.Reader(NewProgressReader(r, size, onProgress))
	if maxBytes > 0 {
		src = io.LimitReader(src, maxBytes+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return "", errUnreadable(err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", ErrFileTooLarge(maxBytes)
	}
	if len(data) == 0 {
		return "", errEmptyFile()
	}
	if !utf8.Valid(data) {
		return "", errUnreadable(errors.New("content is not valid UTF-8 text"))
	}
	return string(data), nil
}

// JSONBodyLimit is the request size allowed for a {csvData} body carrying a
// file of up to maxFileSize bytes. JSON escaping can double the text.
func JSONBodyLimit(maxFileSize int64) int64 {
	return 2*maxFileSize + 1<<10
}

// ErrFileTooLarge is returned for uploads over limit bytes
func ErrFileTooLarge(limit int64) error {
	return apperrors.New(apperrors.CodeFileTooLarge, FileTooLargeMessage(limit))
}

// userMessage picks the message an intake failure shows
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return MsgUnreadableFile
}
