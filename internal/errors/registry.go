package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// Registered codes used outside this package.
const (
	CodeKeyPathOverflow  = "E001"
	CodeTraversalAborted = "E002"
	CodeInsertOutOfRange = "E003"
	CodeMoveOutOfRange   = "E004"
	CodeHostFailure      = "E005"
	CodeRootNotFound     = "E006"
	CodeProgramStopped   = "E007"
	CodeUnknownListener  = "E008"

	CodeBadFrame      = "E060"
	CodeUnknownHandle = "E061"

	CodeInvalidConfig  = "E120"
	CodeMissingConfig  = "E121"
	CodeInvalidPort    = "E122"
	CodeInvalidSection = "E123"

	CodeScriptFailed = "E140"
	CodeBadScript    = "E141"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Reconciliation Errors (E001-E019)
	// ============================================

	CodeKeyPathOverflow: {
		Category:   CategoryReconcile,
		Message:    "Key path capacity exceeded",
		Suggestion: "Keyed nesting is limited to 32 levels; key only the nodes that need identity",
	},
	CodeTraversalAborted: {
		Category: CategoryReconcile,
		Message:  "Traversal aborted",
	},
	CodeInsertOutOfRange: {
		Category: CategoryHost,
		Message:  "Child insert index out of range",
	},
	CodeMoveOutOfRange: {
		Category: CategoryHost,
		Message:  "Child move index out of range",
	},
	CodeHostFailure: {
		Category: CategoryHost,
		Message:  "Host operation failed",
	},
	CodeRootNotFound: {
		Category:   CategoryHost,
		Message:    "Root element not found",
		Suggestion: "Check the root selector passed to Run",
	},
	CodeProgramStopped: {
		Category: CategoryRuntime,
		Message:  "Program stopped after a fatal error",
	},
	CodeUnknownListener: {
		Category: CategoryRuntime,
		Message:  "Listener token not found",
	},

	// ============================================
	// Protocol Errors (E060-E079)
	// ============================================

	CodeBadFrame: {
		Category: CategoryProtocol,
		Message:  "Invalid message format",
	},
	CodeUnknownHandle: {
		Category: CategoryProtocol,
		Message:  "Unknown node handle",
	},

	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	CodeInvalidConfig: {
		Category:   CategoryConfig,
		Message:    "Invalid domafic.json",
		Suggestion: "Check that domafic.json is valid JSON",
	},
	CodeMissingConfig: {
		Category: CategoryConfig,
		Message:  "Missing required configuration",
	},
	CodeInvalidPort: {
		Category: CategoryConfig,
		Message:  "Invalid port number",
	},
	CodeInvalidSection: {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	CodeScriptFailed: {
		Category: CategoryCLI,
		Message:  "Replay script failed",
	},
	CodeBadScript: {
		Category:   CategoryCLI,
		Message:    "Invalid replay script",
		Suggestion: "Scripts are YAML documents with a top-level steps list",
	},
}

// Lookup returns the template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
