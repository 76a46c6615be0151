package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const pollInterval = 200 * time.Millisecond

// TailOptions controls a single Tail call.
type TailOptions struct {
	// Offset < 0 means "last Limit lines"; otherwise read from this byte offset.
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	// TaskID keeps only lines carrying task_id=TaskID when non-zero.
	TaskID int64
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path according to opts. A missing file yields an empty
// result at offset 0. An offset past the end of the file (after truncation)
// restarts from the beginning.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	match := lineFilter(opts.TaskID)

	var (
		result TailResult
		err    error
	)
	if opts.Offset < 0 {
		result, err = readLast(path, opts.Limit, match)
	} else {
		result, err = readFrom(path, opts.Offset, match)
	}
	if err != nil || len(result.Lines) > 0 || !opts.Follow || opts.Wait == 0 {
		return result, err
	}

	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			return result, nil
		case <-ticker.C:
		}
		next, err := readFrom(path, result.Offset, match)
		if err != nil {
			return result, err
		}
		result.Offset = next.Offset
		if len(next.Lines) > 0 {
			result.Lines = next.Lines
			return result, nil
		}
	}
}

func lineFilter(taskID int64) func(string) bool {
	if taskID == 0 {
		return func(string) bool { return true }
	}
	needle := "task_id=" + strconv.FormatInt(taskID, 10)
	quoted := `"task_id":` + strconv.FormatInt(taskID, 10)
	return func(line string) bool {
		for _, token := range []string{needle, quoted} {
			idx := strings.Index(line, token)
			if idx < 0 {
				continue
			}
			end := idx + len(token)
			if end == len(line) || line[end] < '0' || line[end] > '9' {
				return true
			}
		}
		return false
	}
}

func open(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return file, info.Size(), nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}

// readLast keeps a ring of the last limit matching lines. A limit <= 0 only
// positions the offset at the end of the file.
func readLast(path string, limit int, match func(string) bool) (TailResult, error) {
	file, size, err := open(path)
	if file == nil || err != nil {
		return TailResult{}, err
	}
	defer file.Close()
	if limit <= 0 {
		return TailResult{Offset: size}, nil
	}

	ring := make([]string, 0, limit)
	start := 0
	scanner := newScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !match(line) {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, line)
			continue
		}
		ring[start] = line
		start = (start + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}
	lines := append(append([]string(nil), ring[start:]...), ring[:start]...)
	return TailResult{Lines: lines, Offset: size}, nil
}

// readFrom returns complete lines after offset. A trailing partial line is
// left for the next call.
func readFrom(path string, offset int64, match func(string) bool) (TailResult, error) {
	file, size, err := open(path)
	if file == nil || err != nil {
		return TailResult{}, err
	}
	defer file.Close()
	if offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	result := TailResult{Offset: offset}
	reader := bufio.NewReader(io.LimitReader(file, size-offset))
	for {
		raw, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read log file: %w", err)
		}
		result.Offset += int64(len(raw))
		line := strings.TrimRight(raw, "\r\n")
		if match(line) {
			result.Lines = append(result.Lines, line)
		}
	}
	return result, nil
}
