package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dcrodman/railyard/internal/core/data"
)

const timeFormat = "2006-01-02 15:04:05"

func printRecords(w io.Writer, records []data.SessionRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tUSERNAME\tADDRESS\tPEER\tOUTCOME\tCONNECTED\tACTIVATED\tDISCONNECTED")
	for _, r := range records {
		outcome := r.Outcome
		if r.Reason != "" {
			outcome += " (" + r.Reason + ")"
		}
		peer := "-"
		if r.Outcome == data.OutcomeAccepted {
			peer = fmt.Sprint(r.PeerID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.SessionID,
			r.Username,
			r.Address,
			peer,
			outcome,
			r.ConnectedAt.Format(timeFormat),
			formatOptional(r.ActivatedAt),
			formatOptional(r.DisconnectedAt),
		)
	}
	return tw.Flush()
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeFormat)
}
