package ops

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/buddy/internal/contextitem"
	"github.com/hpungsan/buddy/internal/errors"
)

// writeFileAtomic streams write into a temp file beside path and renames it
// into place, so an existing file survives a failed write.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create output file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close output file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted after validation.
	if isSymlink(path) {
		return errors.NewInternal(fmt.Errorf("output path is a symlink"))
	}

	// Windows refuses to rename over an existing file; keep the original.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("destination already exists; overwriting is not supported on Windows (choose a new path)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize output file: %w", err))
	}

	success = true
	return nil
}

// defaultOutputPath returns ~/.buddy/exports/<workspace>-<timestamp><ext>.
func defaultOutputPath(workspaceNorm string, now time.Time, ext string) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := SanitizeForFilename(workspaceNorm)
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, now.UTC().Format("2006-01-02T150405"), ext)), nil
}

// LineRange is an inclusive, 1-based range of lines.
type LineRange struct {
	Start int
	End   int
}

// ParseLineRange parses "a:b" (or a single "a") into a LineRange.
func ParseLineRange(s string) (*LineRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	startStr, endStr, found := strings.Cut(s, ":")
	if !found {
		endStr = startStr
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(startStr))
	end, err2 := strconv.Atoi(strings.TrimSpace(endStr))
	if err1 != nil || err2 != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("lines must look like 10:20 (got %q)", s))
	}
	if start < 1 || end < start {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("lines must satisfy 1 <= start <= end (got %d:%d)", start, end))
	}
	return &LineRange{Start: start, End: end}, nil
}

// String renders the range the way ParseLineRange reads it.
func (r *LineRange) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

// sliceLines returns lines Start..End of content. A range past the end of the
// content is clamped; one that starts past it is an error.
func sliceLines(content string, r *LineRange) (string, error) {
	lines := strings.SplitAfter(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if r.Start > len(lines) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("line %d is past the end of the file (%d lines)", r.Start, len(lines)))
	}
	end := min(r.End, len(lines))
	out := strings.TrimSuffix(strings.Join(lines[r.Start-1:end], ""), "\n")
	return strings.TrimSuffix(out, "\r"), nil
}

// maxSelectionSourceBytes caps the file a line selection is cut from. The
// selection itself is weighed against capacity after slicing.
const maxSelectionSourceBytes = 64 << 20

// readSourceFile reads a regular file for a context item. A whole file that
// could not fit the capacity is refused before it is read; a file read for a
// line selection is only bounded by maxSelectionSourceBytes.
func readSourceFile(path string, capacity int, selection bool) (abs string, content string, err error) {
	abs, err = filepath.Abs(path)
	if err != nil {
		return "", "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", errors.NewFileNotFound(path)
		}
		return "", "", errors.NewInternal(err)
	}
	if info.IsDir() {
		return "", "", errors.NewInvalidRequest(fmt.Sprintf("%s is a directory; use add-dir to pack it", path))
	}
	if selection {
		if info.Size() > maxSelectionSourceBytes {
			return "", "", errors.NewInvalidRequest(fmt.Sprintf("%s is larger than %d bytes; cannot select lines from it", path, maxSelectionSourceBytes))
		}
	} else if size := int((info.Size() + 3) / 4); size > capacity {
		// The weight estimate never exceeds bytes/4 rounded up.
		return "", "", errors.NewItemTooLarge(size, capacity)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", "", errors.NewInternal(fmt.Errorf("failed to read %s: %w", path, err))
	}
	return abs, string(data), nil
}

// selectionName names a selection item after its file and range.
func selectionName(path string, r *LineRange) string {
	return fmt.Sprintf("%s (lines %s)", contextitem.DefaultDisplayName("", path), r)
}
