package models

// AppModel holds the UI's local state. Everything semantic arrives
// from the core over the event bus.
type AppModel struct {
	Messages    []Message // Current messages to display
	Input       string    // User input field
	Status      string    // Status bar text
	State       AppState  // Engine state, drives the prompt style
	Cwd         string    // Engine working directory for the prompt
	Busy        bool      // A request is in flight
	LoadingDots int       // Animation counter for loading dots
	Width       int       // Terminal width
	Height      int       // Terminal height
	EngineReady bool      // Whether the AI pipeline is configured
}
