package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	// Primary colors
	colorPrimary = lipgloss.Color("#7D56F4") // Purple
	colorAccent  = lipgloss.Color("#00D9FF") // Cyan

	// Status colors
	colorSuccess = lipgloss.Color("#00D787") // Green
	colorWarning = lipgloss.Color("#FFB86C") // Orange
	colorError   = lipgloss.Color("#FF5555") // Red
	colorInfo    = lipgloss.Color("#8BE9FD") // Cyan

	// UI colors
	colorText    = lipgloss.Color("#F8F8F2") // White
	colorTextDim = lipgloss.Color("#6272A4") // Gray
	colorBgAlt   = lipgloss.Color("#21222C") // Alt background
)

// Style definitions
var (
	// Title bar
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	contextStyle = lipgloss.NewStyle().
			Foreground(colorInfo).
			Padding(0, 1)

	// Selected item in list
	selectedStyle = lipgloss.NewStyle().
			Foreground(colorBgAlt).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1)

	// Normal list item
	normalStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Padding(0, 1)

	// Warning message
	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	// Info message
	infoStyle = lipgloss.NewStyle().
			Foreground(colorInfo)

	// Description style (for list items)
	descriptionStyle = lipgloss.NewStyle().
				Foreground(colorTextDim)

	// Highlighted text
	highlightStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	// Dimmed text
	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	// Spinner style
	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	// Status indicator styles
	statusReadyStyle = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)

	statusPendingStyle = lipgloss.NewStyle().
				Foreground(colorWarning).
				Bold(true)

	statusFailedStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Bold(true)
)

// RenderTitle renders the title bar
func RenderTitle(context string) string {
	left := titleStyle.Render("kubemirror")
	right := contextStyle.Render("[context: " + context + "]")
	return lipgloss.JoinHorizontal(lipgloss.Left, left, right)
}

// RenderWarning renders a warning message
func RenderWarning(msg string) string {
	return warningStyle.Render("⚠ " + msg)
}

// RenderInfo renders an info message
func RenderInfo(msg string) string {
	return infoStyle.Render("ℹ " + msg)
}

// RenderListItem renders a list item
func RenderListItem(title, description string, selected bool) string {
	if selected {
		titleRendered := selectedStyle.Render("❯ " + title)
		descRendered := descriptionStyle.Render("    " + description)
		return titleRendered + "\n" + descRendered
	}

	titleRendered := normalStyle.Render("  " + title)
	descRendered := descriptionStyle.Render("    " + description)
	return titleRendered + "\n" + descRendered
}

// RenderStatus renders a status indicator
func RenderStatus(status string) string {
	switch status {
	case "Running", "Ready", "Active", "Succeeded", "Complete", "Bound", "Available", "Normal":
		return statusReadyStyle.Render("●")
	case "Pending", "ContainerCreating", "Terminating", "Released", "Suspended":
		return statusPendingStyle.Render("●")
	case "Failed", "Error", "CrashLoopBackOff", "ImagePullBackOff", "ErrImagePull", "NotReady", "Unknown", "Lost", "Warning":
		return statusFailedStyle.Render("●")
	default:
		if strings.HasPrefix(status, "Ready,") {
			return statusPendingStyle.Render("●")
		}
		return dimStyle.Render("●")
	}
}

// GetMaxHeight returns the maximum height for a given screen height
func GetMaxHeight(screenHeight int) int {
	maxHeight := screenHeight - 7 // Account for title, header, filter, help
	if maxHeight < 4 {
		maxHeight = 4
	}
	return maxHeight
}
