// Package errors provides coded, actionable errors for domafic.
//
// Every failure that crosses a package boundary carries a registered code
// so that logs, metrics and the CLI can classify it without string
// matching.
//
// # Error Codes
//
//   - E001-E019: reconciliation and runtime (key paths, traversal, host ops)
//   - E060-E079: remote host wire protocol
//   - E120-E139: configuration
//   - E140-E159: CLI
//
// # Usage
//
//	err := errors.New(errors.CodeInsertOutOfRange).
//	    WithDetailf("index %d, %d children", idx, n).
//	    Wrap(cause)
//
//	errors.HasCode(err, errors.CodeInsertOutOfRange) // true
//	fmt.Print(err.Format())
package errors
