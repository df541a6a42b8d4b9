package logging

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogLevel is the verbosity threshold of the traffic log.
// Higher values are more verbose, a line is emitted when its
// own level is numerically less than or equal to the configured one.
type LogLevel int

const (
	LevelNone LogLevel = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

var logLevelNames = map[LogLevel]string{
	LevelNone:  "NONE",
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLogLevel accepts either a level name (case-insensitive) or its numeric value.
func ParseLogLevel(raw string) (LogLevel, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < int(LevelNone) || n > int(LevelDebug) {
			return LevelNone, fmt.Errorf("log level %d out of range [%d, %d]", n, LevelNone, LevelDebug)
		}
		return LogLevel(n), nil
	}
	for level, name := range logLevelNames {
		if strings.EqualFold(name, raw) {
			return level, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown log level %q", raw)
}

func (l LogLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseLogLevel(fmt.Sprint(raw))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l *LogLevel) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseLogLevel(value.Value)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
