package model

// AppError is the single error payload produced by every merge stage.
// The CLI maps it to an exit code; the HTTP mode returns it as JSON.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`

	URL     string `json:"url,omitempty"`     // input path or URL the error belongs to
	Snippet string `json:"snippet,omitempty"` // element name or short excerpt
	Hint    string `json:"hint,omitempty"`
}

type ErrorResponse struct {
	Error AppError `json:"error"`
}

// Stages, in pipeline order.
const (
	StageLoadConfig  = "load_config"
	StageLoadInput   = "load_input"
	StageParseInput  = "parse_input"
	StageMerge       = "merge"
	StageRender      = "render"
	StageWriteOutput = "write_output"
)
