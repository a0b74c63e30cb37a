// Package errors provides structured, actionable error messages for the
// wirecall command.
//
// # Error Categories
//
// Errors are organized into categories:
//   - transport: dial, read and write failures, HTTP status errors
//   - protocol: malformed frames, invalid results, invalid tensors
//   - application: errors reported by the remote method
//   - config: missing or invalid wirecall.json
//   - cli: invalid arguments, unreadable input
//
// # Error Codes
//
// Each error has a unique code (e.g., "E101") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Usage
//
//	err := errors.New("E401").
//	    WithSuggestion("Run 'wirecall init' in the project directory")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E401: Config file not found
//	//
//	//   No wirecall.json was found in this directory or any parent.
//	//
//	//   Hint: Run 'wirecall init' in the project directory
//	//
//	//   Learn more: https://wirecall.dev/docs/errors/E401
//
// Errors returned by the client packages are mapped to codes with
// Classify.
package errors
