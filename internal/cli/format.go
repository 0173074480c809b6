// Package cli provides shared formatting helpers for CLI output.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// ANSI color constants.
const (
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Red    = "\033[31m"
	Cyan   = "\033[36m"
	Dim    = "\033[2m"
	Bold   = "\033[1m"
	Reset  = "\033[0m"
)

// Box width is the inner content width (between the border characters).
const boxWidth = 40

// Margin is the left indent for all branded output.
const margin = "  "

// ShortenHome replaces the $HOME prefix with ~.
func ShortenHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

// FormatNumber adds comma separators (1234 -> "1,234").
func FormatNumber(n int) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return FormatNumber(n/1000) + "," + fmt.Sprintf("%03d", n%1000)
}

// Truncate shortens s to max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

// Banner prints the markvault wordmark and tagline. Used by `markvault init`.
func Banner(version string) {
	fmt.Println()
	fmt.Printf("%s%s  ┳┳┓┏┓┳┓┓┏┓┏┏┓┳┓┏┓┏┳┓%s\n", margin, Cyan, Reset)
	fmt.Printf("%s%s  ┃┃┃┣┫┣┫┃┫ ┃┃┃┃┃┃┃ ┃ %s\n", margin, Cyan, Reset)
	fmt.Printf("%s%s  ┛ ┗┛┗┛┗┛┗┛┗┛┗┗┛┗┛ ┻ %s\n", margin, Cyan, Reset)
	fmt.Println()
	fmt.Printf("%s%smarkvault%s %s— portable notes with hybrid search v%s%s\n",
		margin, Bold, Reset, Dim, version, Reset)
}

// Header prints a small heavy-border box with a title. Used by
// `markvault status` and `markvault doctor`.
func Header(title string) {
	fmt.Println()
	heavyTop := margin + "┏" + strings.Repeat("━", boxWidth) + "┓"
	heavyBottom := margin + "┗" + strings.Repeat("━", boxWidth) + "┛"

	padded := padRight("  "+title, boxWidth)

	fmt.Printf("%s%s%s\n", Cyan, heavyTop, Reset)
	fmt.Printf("%s%s┃%s┃%s\n", Cyan, margin, padded, Reset)
	fmt.Printf("%s%s%s\n", Cyan, heavyBottom, Reset)
}

// Section prints a section divider line: ── Name ─────────────────
func Section(name string) {
	prefix := "── " + name + " "
	remaining := boxWidth + 2 - runeLen(prefix)
	if remaining < 0 {
		remaining = 0
	}
	fmt.Printf("\n%s%s%s%s\n\n", margin, Cyan, prefix+strings.Repeat("─", remaining), Reset)
}

// Box prints a light-border box around content lines.
func Box(lines []string) {
	lightTop := margin + "┌" + strings.Repeat("─", boxWidth) + "┐"
	lightBottom := margin + "└" + strings.Repeat("─", boxWidth) + "┘"

	fmt.Println()
	fmt.Println(lightTop)
	for _, line := range lines {
		padded := padRight("  "+line, boxWidth)
		fmt.Printf("%s│%s│\n", margin, padded)
	}
	fmt.Println(lightBottom)
}

// padRight pads s with spaces to exactly width characters, truncating
// when s is longer.
func padRight(s string, width int) string {
	n := runeLen(s)
	if n >= width {
		r := []rune(s)
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-n)
}

func runeLen(s string) int {
	return len([]rune(s))
}
