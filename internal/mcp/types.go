package mcp

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct{}

// Window describes one tracked toplevel.
type Window struct {
	ID     uint32   `json:"id"`
	Title  string   `json:"title"`
	AppID  string   `json:"app_id"`
	Output string   `json:"output"`
	States []string `json:"states"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []Window `json:"windows"`
}

// GetActiveWindowInput is the input for the get_active_window tool.
type GetActiveWindowInput struct{}

// GetActiveWindowOutput is the output for the get_active_window tool. An
// active window with empty title and app_id means the output it was on has
// nothing focused.
type GetActiveWindowOutput struct {
	Known  bool   `json:"known"`
	Title  string `json:"title,omitempty"`
	AppID  string `json:"app_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// CloseActiveWindowInput is the input for the close_active_window tool.
type CloseActiveWindowInput struct{}

// CloseActiveWindowOutput is the output for the close_active_window tool.
type CloseActiveWindowOutput struct {
	Requested bool `json:"requested"`
}
