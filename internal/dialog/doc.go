// Package dialog implements the user-facing side of the matchering flows
// in a terminal: message boxes, the Yes/No/Cancel question, the one-field
// text prompt and the scrolling console.
//
// Message boxes are drawn with lipgloss borders on stdout. Console output
// (progress lines and tool stdout/stderr) goes to its own writer, stderr by
// default, so stdout stays clean when --json is used.
//
// Answers preset from command-line flags (--action, --profile) are used
// without prompting. When stdin is not a terminal and nothing is preset,
// the prompts answer Cancel, which makes every flow stop silently.
package dialog
