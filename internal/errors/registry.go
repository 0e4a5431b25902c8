package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Structural Errors (E001-E019)
	// ============================================

	"E001": {
		Category:   CategoryStructural,
		Message:    "Duplicate position ID among siblings",
		Detail:     "Two children of the same parent carry the same position ID. Position paths would no longer identify a unique node.",
		Suggestion: "Position IDs are assigned by the tree producer at creation time; check its allocation for the affected sibling run.",
	},
	"E002": {
		Category:   CategoryStructural,
		Message:    "Patch path does not resolve to a node",
		Detail:     "A patch referenced a position path that is not present in the target tree.",
		Suggestion: "Patches must be applied to the same tree version they were computed against.",
	},
	"E003": {
		Category: CategoryStructural,
		Message:  "Malformed position path",
		Detail:   "The position path could not be parsed into position IDs.",
	},
	"E004": {
		Category: CategoryStructural,
		Message:  "Patch operation does not match target node",
		Detail:   "The patch operation is not valid for the kind of node at its path (e.g., SetText against an Element).",
	},
	"E005": {
		Category: CategoryStructural,
		Message:  "Insert index out of range",
		Detail:   "An InsertNode patch carries an index beyond the parent's child list.",
	},
	"E006": {
		Category:   CategoryStructural,
		Message:    "Position gap exhausted",
		Detail:     "No free position ID remains between the requested siblings.",
		Suggestion: "Renumber the affected sibling run with vtree.RenumberSiblings; never renumber the whole tree.",
	},
	"E007": {
		Category:   CategoryStructural,
		Message:    "Nil child node",
		Detail:     "A child slot in the tree holds a nil pointer. Absent children are modeled as Null nodes, never as nil.",
		Suggestion: "Have the tree producer emit vtree.Null at the child's position instead of nil.",
	},

	// ============================================
	// Capacity Errors (E020-E029)
	// ============================================

	"E020": {
		Category:   CategoryCapacity,
		Message:    "Pattern entry exceeds store budget",
		Detail:     "A single pattern entry is larger than the configured memory ceiling and was rejected. The authoritative path is unaffected.",
		Suggestion: "Raise the store budget or reduce the size of learned patch lists.",
	},

	// ============================================
	// Protocol Errors (E030-E049)
	// ============================================

	"E030": {
		Category: CategoryProtocol,
		Message:  "Frame truncated",
		Detail:   "The binary frame ended before the declared payload was fully read.",
	},
	"E031": {
		Category: CategoryProtocol,
		Message:  "Unknown frame type",
	},
	"E032": {
		Category: CategoryProtocol,
		Message:  "Unknown patch operation",
	},
	"E033": {
		Category: CategoryProtocol,
		Message:  "Malformed signature key",
		Detail:   "The signature key could not be parsed back into component and key shapes.",
	},
	"E034": {
		Category:   CategoryProtocol,
		Message:    "Handshake rejected",
		Suggestion: "Reconnect with a fresh handshake frame as the first message.",
	},
	"E035": {
		Category: CategoryProtocol,
		Message:  "Frame payload too large",
		Detail:   "The payload exceeds the frame header's size cap. The frame was not sent or not read.",
	},

	// ============================================
	// Config Errors (E050-E059)
	// ============================================

	"E050": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"E051": {
		Category:   CategoryConfig,
		Message:    "Unknown eviction policy",
		Detail:     "The eviction policy must be one of: lru, lfu, oldest.",
		Suggestion: "Set store.evictionPolicy in presage.json to a supported policy.",
	},
}
