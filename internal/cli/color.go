package cli

import "github.com/fatih/color"

// Colour is disabled automatically when stdout is not a terminal or NO_COLOR is set.
var (
	successText = color.New(color.FgGreen).SprintFunc()
	errorLabel  = color.New(color.FgRed, color.Bold).SprintFunc()
	hintText    = color.New(color.FgHiBlack).SprintFunc()
)
