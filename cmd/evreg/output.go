package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alfredjeanlab/evreg/internal/client"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/ui"
)

const timeLayout = "2006-01-02 15:04"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printEventTable(w io.Writer, e *model.Event) {
	fmt.Fprintf(w, "ID:          %s\n", e.ID)
	fmt.Fprintf(w, "Title:       %s\n", e.Title)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(e.Status()))
	fmt.Fprintf(w, "Capacity:    %d/%d (%d remaining)\n", e.Capacity.Registered, e.Capacity.Max, e.Capacity.Remaining())
	if e.Category.ID != "" {
		fmt.Fprintf(w, "Category:    %s\n", categoryLabel(e.Category))
	}
	if !e.Date.IsZero() {
		fmt.Fprintf(w, "Date:        %s\n", e.Date.Format(timeLayout))
	}
	if loc := locationLabel(e.Location); loc != "" {
		fmt.Fprintf(w, "Location:    %s\n", loc)
	}
	if e.Pricing.Amount > 0 {
		fmt.Fprintf(w, "Price:       %.2f %s\n", e.Pricing.Amount, e.Pricing.Currency)
	}
	if e.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", e.Description)
	}
}

// titleWidth leaves the fixed columns of the event table room on the
// current terminal.
func titleWidth() int {
	return max(20, ui.Width(120)-70)
}

func printEventListTable(w io.Writer, evs []*model.Event) {
	width := titleWidth()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSEATS\tCATEGORY\tDATE\tTITLE")
	for _, e := range evs {
		date := ""
		if !e.Date.IsZero() {
			date = e.Date.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			e.ID,
			ui.RenderStatus(e.Status()),
			e.Capacity.Registered, e.Capacity.Max,
			e.Category.ID,
			date,
			truncate(e.Title, width),
		)
	}
	tw.Flush()
}

func printRegistration(w io.Writer, res *registration.Result) {
	fmt.Fprintf(w, "Registered %s for %s (%d seat(s))\n",
		ui.RenderAccent(res.Attendee.Email), res.Event.ID, res.Attendee.GroupSize)
	fmt.Fprintf(w, "Registration: %s\n", res.RegistrationID)
	fmt.Fprintf(w, "Capacity:     %d/%d\n", res.Event.Capacity.Registered, res.Event.Capacity.Max)
}

func printRegistrationListTable(w io.Writer, regs []*model.Registration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tGROUP\tREGISTERED")
	for _, r := range regs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.AttendeeEmail, r.AttendeeName, r.GroupSize, r.RegisteredAt.Local().Format(timeLayout))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d registrations\n", len(regs))
}

// printError writes err to w, highlighting the rejection code when the
// server supplied one.
func printError(w io.Writer, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		msg := apiErr.Message
		if apiErr.Ambiguous {
			msg += " " + ui.RenderMuted("(outcome unknown, check before retrying)")
		}
		fmt.Fprintf(w, "Error: %s %s\n", ui.RenderCode(apiErr.Code), msg)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func categoryLabel(c model.Category) string {
	if c.Name == "" || c.Name == c.ID {
		return c.ID
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.ID)
}

func locationLabel(l model.Location) string {
	s := l.Venue
	for _, part := range []string{l.City, l.Country} {
		if part == "" {
			continue
		}
		if s != "" {
			s += ", "
		}
		s += part
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
