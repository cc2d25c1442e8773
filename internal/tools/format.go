package tools

import "time"

// Rendered timestamps follow the reference instant's location. Times read
// back from the store are UTC, so every render converts first.

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Monday, January 2, 2006")
}

func formatClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("3:04 PM")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func priorityEmoji(priority string) string {
	switch priority {
	case "high":
		return "🔴"
	case "low":
		return "🟢"
	default:
		return "🟡"
	}
}

func priorityLabel(priority string) string {
	switch priority {
	case "high":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}

func malformedArgs(name string) string {
	return "I couldn't read the arguments for " + name + ". Please try rephrasing your request."
}
