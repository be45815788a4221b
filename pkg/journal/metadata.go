package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Journal file name shapes:
//
//	jrnl0002-20251130.txt -> lane 0002, date 2025-11-30
//	jrnl0002.txt          -> lane 0002, date from first log entry
var (
	filenamePattern  = regexp.MustCompile(`^jrnl(\d{4})-(\d{8})\.txt$`)
	filenameLaneOnly = regexp.MustCompile(`^jrnl(\d{4})\.txt$`)
)

// ExtractFileMetadata derives lane number and journal date from a file name,
// falling back to the first parseable line for the date.
func ExtractFileMetadata(path string) FileMetadata {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	name := filepath.Base(path)

	meta := FileMetadata{
		FilePath: abs,
		FileName: name,
	}
	if info, err := os.Stat(path); err == nil {
		meta.FileSize = info.Size()
	}

	if m := filenamePattern.FindStringSubmatch(name); m != nil {
		meta.Lane = m[1]
		raw := m[2] // YYYYMMDD
		meta.LogDate = fmt.Sprintf("%s-%s-%s", raw[:4], raw[4:6], raw[6:8])
		return meta
	}

	if m := filenameLaneOnly.FindStringSubmatch(name); m != nil {
		meta.Lane = m[1]
	}
	meta.LogDate = dateFromFirstLine(path)
	return meta
}

// dateFromFirstLine reads until the first parseable timestamp and returns
// its date in YYYY-MM-DD form, or "" if none is found.
func dateFromFirstLine(path string) string {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if m := linePattern.FindStringSubmatch(sanitizeLine(scanner.Text())); m != nil {
			ts, err := time.Parse(TimestampLayout, m[1])
			if err != nil {
				continue
			}
			return ts.Format("2006-01-02")
		}
	}
	return ""
}

// CountLines counts the total lines in the file, parseable or not.
func CountLines(path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("counting lines in %s: %w", path, err)
	}
	return count, nil
}
