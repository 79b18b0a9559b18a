package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-to-post/internal/calendar"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show the scheduled and published posting calendar",
	Run:   runCalendar,
}

func runCalendar(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := boot(ctx, "calendar", bootOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	snap, err := calendar.Build(ctx, a.store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed building calendar snapshot")
	}
	if len(snap.Entries) == 0 {
		fmt.Println("Calendar is empty.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTATUS\tLOCATION\tPHOTOS\tPOST ID")
	for _, e := range snap.Entries {
		location := e.Country
		if e.City != "" {
			location = e.City + ", " + e.Country
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			e.At.Format("2006-01-02 15:04"), e.Status, location, e.PhotoCount, e.PostID)
	}
	w.Flush()

	fmt.Println()
	for country, count := range snap.Counts {
		fmt.Printf("%s: %d posts\n", country, count)
	}

	run, runCountry := 0, ""
	for _, e := range snap.Entries {
		if e.Country == runCountry {
			run++
		} else {
			run, runCountry = 1, e.Country
		}
		if run == 3 {
			fmt.Printf("warning: 3 or more consecutive %s posts around %s\n",
				runCountry, e.At.Format("2006-01-02"))
		}
	}
}
