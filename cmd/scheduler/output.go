package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/example/workstation-scheduler/internal/application"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	freeColor    = color.New(color.FgGreen)
	busyColor    = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

func printSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintf(w, "⚠ %s\n", msg)
}

// printError prints err, listing field messages of validation failures.
func printError(w io.Writer, err error) {
	_, _ = errorColor.Fprintf(w, "✗ %s\n", err)

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		fields := make([]string, 0, len(vErr.FieldErrors))
		for field := range vErr.FieldErrors {
			fields = append(fields, field)
		}
		slices.Sort(fields)
		for _, field := range fields {
			fmt.Fprintf(w, "  %s: %s\n", field, vErr.FieldErrors[field])
		}
	}
	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		for _, r := range cErr.Conflicts {
			fmt.Fprintf(w, "  %s held by %s for %s\n", r.ID, r.UserID, r.Period)
		}
	}
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = fmt.Sprintf("%-*s", widths[i], h)
	}
	_, _ = headerColor.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	for _, row := range rows {
		for i := range cells {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func printAvailability(w io.Writer, resourceID string, days []application.DayStatus) {
	_, _ = headerColor.Fprintf(w, "%s\n", resourceID)
	for _, day := range days {
		weekday := day.Date.Weekday().String()[:3]
		if day.Status == application.DayBusy {
			_, _ = fmt.Fprintf(w, "  %s %s  ", day.Date, weekday)
			_, _ = busyColor.Fprintf(w, "%-9s", day.Status)
			_, _ = dimColor.Fprintf(w, " %s", day.OccupantUserID)
			if day.Purpose != "" {
				_, _ = dimColor.Fprintf(w, " (%s)", day.Purpose)
			}
			fmt.Fprintln(w)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s %s  ", day.Date, weekday)
		_, _ = freeColor.Fprintln(w, day.Status)
	}
}
