// Package process implements the process capability: allowlisted
// command execution with hard output and wall-clock ceilings.
//
// Commands arrive as a single string and are tokenized with shell-style
// word splitting, never handed to a shell. Shell metacharacters in any
// token fail validation outright, so pipelines, redirection, chaining
// and substitution cannot be smuggled through an allowlisted binary.
package process
