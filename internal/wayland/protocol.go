package wayland

const displayID uint32 = 1

// Interface names and the versions this client speaks.
const (
	ifaceOutput  = "wl_output"
	ifaceManager = "zwlr_foreign_toplevel_manager_v1"

	outputVersion  = 4
	managerVersion = 3
)

// wl_display
const (
	displaySync        uint16 = 0
	displayGetRegistry uint16 = 1

	displayEventError    uint16 = 0
	displayEventDeleteID uint16 = 1
)

// wl_registry
const (
	registryBind uint16 = 0

	registryEventGlobal       uint16 = 0
	registryEventGlobalRemove uint16 = 1
)

// wl_callback
const callbackEventDone uint16 = 0

// wl_output
const (
	outputRelease uint16 = 0

	outputEventName uint16 = 4
)

// outputReleaseSince is the first wl_output version with a release request.
const outputReleaseSince = 3

// zwlr_foreign_toplevel_manager_v1
const (
	managerStop uint16 = 0

	managerEventToplevel uint16 = 0
	managerEventFinished uint16 = 1
)

// zwlr_foreign_toplevel_handle_v1
const (
	handleUnsetMinimized uint16 = 3
	handleClose          uint16 = 5
	handleDestroy        uint16 = 7

	handleEventTitle       uint16 = 0
	handleEventAppID       uint16 = 1
	handleEventOutputEnter uint16 = 2
	handleEventOutputLeave uint16 = 3
	handleEventState       uint16 = 4
	handleEventDone        uint16 = 5
	handleEventClosed      uint16 = 6
)
