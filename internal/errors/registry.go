package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (K001-K019)
	// ============================================

	"K001": {
		Category: CategoryRuntime,
		Message:  "Callable not bound",
		Detail:   "No callable is registered under this name. It may never have been bound, or the store was destroyed.",
		DocURL:   "https://kodbox.dev/docs/errors/K001",
	},
	"K010": {
		Category: CategoryRuntime,
		Message:  "Entry is locked",
		Detail:   "The entry was installed as locked and cannot be overwritten or removed through the standard path.",
		DocURL:   "https://kodbox.dev/docs/errors/K010",
	},

	// ============================================
	// Persistence Errors (K020-K039)
	// ============================================

	"K020": {
		Category: CategoryPersistence,
		Message:  "Snapshot serialization failed",
		Detail:   "The state could not be encoded as JSON. A value in the store is not serializable.",
		DocURL:   "https://kodbox.dev/docs/errors/K020",
	},
	"K021": {
		Category: CategoryPersistence,
		Message:  "Mirror write failed",
		Detail:   "The durable mirror rejected the snapshot write. In-memory state is unaffected.",
		DocURL:   "https://kodbox.dev/docs/errors/K021",
	},
	"K022": {
		Category: CategoryPersistence,
		Message:  "Mirror clear failed",
		Detail:   "The durable mirror could not remove the snapshot.",
		DocURL:   "https://kodbox.dev/docs/errors/K022",
	},
	"K023": {
		Category: CategoryPersistence,
		Message:  "Mirror read failed",
		Detail:   "The durable mirror could not return the snapshot.",
		DocURL:   "https://kodbox.dev/docs/errors/K023",
	},
	"K030": {
		Category: CategoryPersistence,
		Message:  "Mirror backend closed",
		Detail:   "An operation was attempted on a backend after Close.",
		DocURL:   "https://kodbox.dev/docs/errors/K030",
	},

	// ============================================
	// Config Errors (K040-K049)
	// ============================================

	"K040": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The configuration file does not exist at the given path.",
		DocURL:   "https://kodbox.dev/docs/errors/K040",
	},
	"K041": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file could not be parsed or contains invalid values.",
		DocURL:   "https://kodbox.dev/docs/errors/K041",
	},

	// ============================================
	// CLI Errors (K050-K059)
	// ============================================

	"K050": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		Detail:   "A command argument could not be parsed.",
		DocURL:   "https://kodbox.dev/docs/errors/K050",
	},
}

// GetAllCodes returns all registered error codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
