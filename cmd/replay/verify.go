package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/heat-engine/internal/outbox"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
	"github.com/Rajchodisetti/heat-engine/internal/risk"
)

// auditReport summarises one day's audit files.
type auditReport struct {
	RiskEvents     int                     `json:"risk_events"`
	BreakerTrips   []string                `json:"breaker_trips"`
	RejectedOpens  int                     `json:"rejected_opens"`
	PositionEvents map[paper.EventType]int `json:"position_events,omitempty"`
	Unclosed       []string                `json:"unclosed,omitempty"` // opened with no close in the outbox
}

func verifyCmd() *cobra.Command {
	var riskLog, outboxPath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a day's risk audit log and outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := verify(riskLog, outboxPath)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().StringVar(&riskLog, "risk-log", "", "risk audit log written at market close")
	cmd.Flags().StringVar(&outboxPath, "outbox", "", "outbox JSONL to cross-check (optional)")
	_ = cmd.MarkFlagRequired("risk-log")
	return cmd
}

func verify(riskLog, outboxPath string) (auditReport, error) {
	rep := auditReport{BreakerTrips: []string{}}

	f, err := os.Open(riskLog)
	if err != nil {
		return rep, fmt.Errorf("open risk log: %w", err)
	}
	events, err := risk.ReadEventLog(f)
	f.Close()
	if err != nil {
		return rep, err
	}
	if err := risk.ValidateEvents(events); err != nil {
		return rep, fmt.Errorf("%s: %w", riskLog, err)
	}
	rep.RiskEvents = len(events)
	for _, e := range events {
		switch e.Type {
		case risk.EventLossLimitHit, risk.EventLossStreakHit:
			rep.BreakerTrips = append(rep.BreakerTrips, e.Reason)
		case risk.EventOpenRejected:
			rep.RejectedOpens++
		}
	}

	if outboxPath == "" {
		return rep, nil
	}
	posEvents, err := outbox.ReadEvents(outboxPath)
	if err != nil {
		return rep, fmt.Errorf("read outbox: %w", err)
	}
	rep.PositionEvents = map[paper.EventType]int{}
	open := map[string]bool{}
	for _, ev := range posEvents {
		rep.PositionEvents[ev.Type]++
		switch ev.Type {
		case paper.EventOpened:
			open[ev.Position.ID] = true
		case paper.EventClosed:
			delete(open, ev.Position.ID)
		}
	}
	for id := range open {
		rep.Unclosed = append(rep.Unclosed, id)
	}
	sort.Strings(rep.Unclosed)
	return rep, nil
}
