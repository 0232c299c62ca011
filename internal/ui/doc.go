// Package ui renders the wifiprov command output with lipgloss.
//
// Commands print a Header when they start and a Result when they finish.
// Output is styled for a terminal but stays readable when piped. zap logging
// is silent unless WIFIPROV_LOG_LEVEL is set, so these components are the
// normal user-facing output.
//
//	fmt.Println(ui.NewHeader("Portal Parameters", "wifiprov show",
//	    ui.Field{Key: "Storage", Value: dir},
//	).Render())
//
//	fmt.Println(ui.NewFailureResult("Submit failed", err, portalclient.Hint(err)).Render())
package ui
