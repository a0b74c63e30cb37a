package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

const docBase = "https://wirecall.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Transport Errors (E100-E199)
	// ============================================

	"E101": {
		Category:   CategoryTransport,
		Message:    "WebSocket connection failed",
		Detail:     "The WebSocket handshake with the server did not complete.",
		Suggestion: "Check server.ws in wirecall.json and that the server is reachable",
		DocURL:     docBase + "E101",
	},
	"E102": {
		Category: CategoryTransport,
		Message:  "Connection lost",
		Detail:   "Reading from the WebSocket failed. Every call pending on the connection failed with this error.",
		DocURL:   docBase + "E102",
	},
	"E103": {
		Category: CategoryTransport,
		Message:  "Send failed",
		Detail:   "Writing a request to the WebSocket failed.",
		DocURL:   docBase + "E103",
	},
	"E104": {
		Category:   CategoryTransport,
		Message:    "Call timed out",
		Detail:     "No response arrived before the deadline.",
		Suggestion: "Increase --timeout",
		DocURL:     docBase + "E104",
	},
	"E105": {
		Category: CategoryTransport,
		Message:  "HTTP request failed",
		Detail:   "The HTTP request could not be sent or its response could not be read.",
		DocURL:   docBase + "E105",
	},
	"E110": {
		Category: CategoryTransport,
		Message:  "Unexpected HTTP status",
		Detail:   "The server answered with a non-2xx status.",
		DocURL:   docBase + "E110",
	},
	"E111": {
		Category:   CategoryTransport,
		Message:    "Unauthorized",
		Detail:     "The server rejected the bearer token.",
		Suggestion: "Set auth.token in wirecall.json or export the variable named by auth.tokenEnv",
		DocURL:     docBase + "E111",
	},
	"E120": {
		Category: CategoryTransport,
		Message:  "Connection closed",
		Detail:   "The call was made on a connection that had already been closed.",
		DocURL:   docBase + "E120",
	},

	// ============================================
	// Protocol Errors (E200-E299)
	// ============================================

	"E201": {
		Category: CategoryProtocol,
		Message:  "Malformed message",
		Detail:   "A frame declared more bytes than it carries, or used an unknown tag.",
		DocURL:   docBase + "E201",
	},
	"E202": {
		Category: CategoryProtocol,
		Message:  "Invalid result",
		Detail:   "The control segment is not JSON or is not tagged Ok or Error.",
		DocURL:   docBase + "E202",
	},
	"E203": {
		Category:   CategoryProtocol,
		Message:    "Too many segments",
		Detail:     "A frame carries at most 255 data segments.",
		Suggestion: "Split the payload across several calls",
		DocURL:     docBase + "E203",
	},
	"E210": {
		Category: CategoryProtocol,
		Message:  "Invalid tensor",
		Detail:   "The tensor bytes do not match the declared type and shape.",
		DocURL:   docBase + "E210",
	},

	// ============================================
	// Application Errors (E300-E399)
	// ============================================

	"E301": {
		Category: CategoryApplication,
		Message:  "Remote method failed",
		Detail:   "The server executed the call and reported an error.",
		DocURL:   docBase + "E301",
	},

	// ============================================
	// Config Errors (E400-E499)
	// ============================================

	"E401": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "No wirecall.json was found in this directory or any parent.",
		Suggestion: "Run 'wirecall init' or pass --config",
		DocURL:     docBase + "E401",
	},
	"E402": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "wirecall.json could not be parsed.",
		DocURL:   docBase + "E402",
	},
	"E403": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A value in wirecall.json is out of range or malformed.",
		DocURL:   docBase + "E403",
	},
	"E404": {
		Category:   CategoryConfig,
		Message:    "No server configured",
		Detail:     "Neither server.http nor server.ws is set.",
		Suggestion: "Set server.http or server.ws in wirecall.json, or pass --http / --ws",
		DocURL:     docBase + "E404",
	},

	// ============================================
	// CLI Errors (E500-E599)
	// ============================================

	"E501": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		DocURL:   docBase + "E501",
	},
	"E502": {
		Category: CategoryCLI,
		Message:  "Cannot read input",
		Detail:   "The input file, standard input or S3 object could not be read.",
		DocURL:   docBase + "E502",
	},
	"E503": {
		Category: CategoryCLI,
		Message:  "Cannot write output",
		DocURL:   docBase + "E503",
	},
}

// GetAllCodes returns all registered error codes, sorted.
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
