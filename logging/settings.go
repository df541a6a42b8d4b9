package logging

// Settings is the fully defaulted configuration of a ProxyLogger.
type Settings struct {
	Level               LogLevel `json:"level"`
	Colorful            bool     `json:"colorful"`
	Timestamp           bool     `json:"timestamp"`
	ShowMethod          bool     `json:"showMethod"`
	ShowStatus          bool     `json:"showStatus"`
	ShowError           bool     `json:"showError"`
	Prefix              string   `json:"prefix"`
	ShowRequestHeaders  bool     `json:"showRequestHeaders"`
	ShowRequestBody     bool     `json:"showRequestBody"`
	ShowResponseHeaders bool     `json:"showResponseHeaders"`
	ShowResponseBody    bool     `json:"showResponseBody"`
	ShowQueryParams     bool     `json:"showQueryParams"`
	ShowWsConnections   bool     `json:"showWsConnections"`
	ShowWsMessages      bool     `json:"showWsMessages"`
	ShowSseConnections  bool     `json:"showSseConnections"`
	ShowSseMessages     bool     `json:"showSseMessages"`
	MaxBodyLength       int      `json:"maxBodyLength"`
	MaxWsMessageLength  int      `json:"maxWsMessageLength"`
	MaxSseMessageLength int      `json:"maxSseMessageLength"`
	PrettifyJSON        bool     `json:"prettifyJson"`
	// File, when set, sends traffic lines to a rotating log file instead of stdout.
	File string `json:"file,omitempty"`
}

const (
	DefaultPrefix              = "[Proxy]"
	DefaultMaxBodyLength       = 1000
	DefaultMaxWsMessageLength  = 500
	DefaultMaxSseMessageLength = 500
)

// DefaultSettings returns the settings used for every field the caller leaves unset.
func DefaultSettings() Settings {
	return Settings{
		Level:               LevelInfo,
		Colorful:            true,
		Timestamp:           true,
		ShowMethod:          true,
		ShowStatus:          true,
		ShowError:           true,
		Prefix:              DefaultPrefix,
		ShowWsConnections:   true,
		ShowSseConnections:  true,
		MaxBodyLength:       DefaultMaxBodyLength,
		MaxWsMessageLength:  DefaultMaxWsMessageLength,
		MaxSseMessageLength: DefaultMaxSseMessageLength,
		PrettifyJSON:        true,
	}
}
