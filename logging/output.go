package logging

import (
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	fileOutputsMu sync.Mutex
	fileOutputs   = map[string]*lumberjack.Logger{}
)

// outputFor returns stdout, or a rotating file writer shared by every
// logger configured with the same path.
func outputFor(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}

	fileOutputsMu.Lock()
	defer fileOutputsMu.Unlock()

	if out, ok := fileOutputs[path]; ok {
		return out
	}

	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
	}
	fileOutputs[path] = out

	return out
}

// CloseOutputs closes every rotating traffic log file opened by this process.
func CloseOutputs() error {
	fileOutputsMu.Lock()
	defer fileOutputsMu.Unlock()

	var firstErr error
	for path, out := range fileOutputs {
		if err := out.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(fileOutputs, path)
	}
	return firstErr
}
