package toplevel

// UnknownOutput is the display name of an output that is not (or no longer)
// registered.
const UnknownOutput = "unknown"

// Window is the last known state of one toplevel. Title and AppID are empty
// until the compositor reports them.
type Window struct {
	ID        ID
	Title     string
	AppID     string
	States    States
	Output    OutputID
	HasOutput bool
}

// WindowInfo is the list() view of a window with every optional field
// defaulted.
type WindowInfo struct {
	ID         ID
	Title      string
	AppID      string
	OutputName string
	States     States
}

// ActiveInfo describes the active window. All fields empty except
// OutputName means "nothing active on this output".
type ActiveInfo struct {
	Title      string
	AppID      string
	OutputName string
}

// WindowStore maps window ids to records. Iteration order is unspecified.
type WindowStore struct {
	windows map[ID]*Window
}

func NewWindowStore() *WindowStore {
	return &WindowStore{windows: make(map[ID]*Window)}
}

// Insert creates an empty record for id, replacing any previous one.
func (s *WindowStore) Insert(id ID) *Window {
	w := &Window{ID: id}
	s.windows[id] = w
	return w
}

// Get returns the record for id.
func (s *WindowStore) Get(id ID) (*Window, bool) {
	w, ok := s.windows[id]
	return w, ok
}

// Update applies fn to the record for id if it exists.
func (s *WindowStore) Update(id ID, fn func(*Window)) bool {
	w, ok := s.windows[id]
	if !ok {
		return false
	}
	fn(w)
	return true
}

// Remove deletes and returns the record for id.
func (s *WindowStore) Remove(id ID) (*Window, bool) {
	w, ok := s.windows[id]
	if ok {
		delete(s.windows, id)
	}
	return w, ok
}

func (s *WindowStore) Len() int {
	return len(s.windows)
}

// Each calls fn for every record.
func (s *WindowStore) Each(fn func(*Window)) {
	for _, w := range s.windows {
		fn(w)
	}
}

// OutputRegistry maps output ids to their names. Its lifecycle is
// independent of windows.
type OutputRegistry struct {
	names map[OutputID]string
}

func NewOutputRegistry() *OutputRegistry {
	return &OutputRegistry{names: make(map[OutputID]string)}
}

func (r *OutputRegistry) Set(id OutputID, name string) {
	r.names[id] = name
}

func (r *OutputRegistry) Remove(id OutputID) {
	delete(r.names, id)
}

func (r *OutputRegistry) Len() int {
	return len(r.names)
}

// Resolve returns the name of id, or UnknownOutput when valid is false or
// the output is not registered.
func (r *OutputRegistry) Resolve(id OutputID, valid bool) string {
	if !valid {
		return UnknownOutput
	}
	if name, ok := r.names[id]; ok {
		return name
	}
	return UnknownOutput
}

// OutputName resolves the output of w.
func (r *OutputRegistry) OutputName(w *Window) string {
	return r.Resolve(w.Output, w.HasOutput)
}

// Info converts w into its list() form.
func (r *OutputRegistry) Info(w *Window) WindowInfo {
	states := make(States, len(w.States))
	copy(states, w.States)
	return WindowInfo{
		ID:         w.ID,
		Title:      w.Title,
		AppID:      w.AppID,
		OutputName: r.OutputName(w),
		States:     states,
	}
}
