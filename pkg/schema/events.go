package schema

// Event type constants for the interaction log and the live stream.
const (
	EventSelectionOpened  = "selection_opened"
	EventSelectionChanged = "selection_changed"
	EventSelectionClosed  = "selection_closed"

	EventDatasetLoaded   = "dataset_loaded"
	EventDatasetReloaded = "dataset_reloaded"
	EventDatasetRejected = "dataset_rejected"
)

// CloseSource identifies which UI control asked for the detail panel to close.
type CloseSource string

const (
	CloseSourceButton   CloseSource = "close_button"
	CloseSourceOverlay  CloseSource = "overlay"
	CloseSourceKeyboard CloseSource = "keyboard"
	CloseSourceAPI      CloseSource = "api"
)
