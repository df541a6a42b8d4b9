package logging

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	NO_COLOR_ENVIRONMENT_KEY    = "NO_COLOR"
	FORCE_COLOR_ENVIRONMENT_KEY = "FORCE_COLOR"
)

var (
	gray       = []color.Attribute{color.FgHiBlack}
	red        = []color.Attribute{color.FgRed}
	green      = []color.Attribute{color.FgGreen}
	yellow     = []color.Attribute{color.FgYellow}
	blue       = []color.Attribute{color.FgBlue}
	magenta    = []color.Attribute{color.FgMagenta}
	cyan       = []color.Attribute{color.FgCyan}
	white      = []color.Attribute{color.FgWhite}
	brightBlue = []color.Attribute{color.FgBlue, color.Bold}

	methodColors = map[string][]color.Attribute{
		"GET":     green,
		"POST":    blue,
		"PUT":     yellow,
		"DELETE":  red,
		"PATCH":   magenta,
		"HEAD":    cyan,
		"OPTIONS": white,
	}

	levelColors = map[LogLevel][]color.Attribute{
		LevelError: red,
		LevelWarn:  yellow,
		LevelInfo:  cyan,
		LevelDebug: gray,
	}
)

func statusColor(status int) []color.Attribute {
	switch {
	case status >= 200 && status < 300:
		return green
	case status >= 300 && status < 400:
		return yellow
	case status >= 400 && status < 500:
		return red
	case status >= 500:
		return magenta
	}
	return white
}

// detectColorSupport decides whether ANSI sequences are written to out.
// NO_COLOR and FORCE_COLOR win over terminal detection.
func detectColorSupport(colorful bool, out io.Writer) bool {
	if !colorful {
		return false
	}

	if os.Getenv(NO_COLOR_ENVIRONMENT_KEY) != "" || os.Getenv(FORCE_COLOR_ENVIRONMENT_KEY) == "0" {
		return false
	}
	if force := os.Getenv(FORCE_COLOR_ENVIRONMENT_KEY); force != "" {
		return true
	}

	if f, ok := out.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

type colorizer struct {
	enabled bool
}

func (c colorizer) paint(text string, attrs []color.Attribute) string {
	if !c.enabled || text == "" {
		return text
	}
	painter := color.New(attrs...)
	painter.EnableColor()
	return painter.Sprint(text)
}
