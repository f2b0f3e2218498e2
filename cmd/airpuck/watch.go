package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/airpuck/internal/events"
	"github.com/alfredjeanlab/airpuck/internal/model"
	"github.com/alfredjeanlab/airpuck/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream table change events from NATS",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if cfg.NATSURL == "" {
			return errors.New("watch needs AIRPUCK_NATS_URL or a profile with nats_url")
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(events.TopicAll)
		if err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		defer cancel()

		want := events.Source{BaseID: cfg.BaseID, Table: cfg.TableName}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				// Headers let other tables' events be skipped undecoded.
				if !all && msg.Source != (events.Source{}) && !msg.Source.Matches(want) {
					continue
				}
				ev, err := msg.Decode()
				if err != nil {
					logger.Warn("undecodable event", "topic", msg.Topic, "err", err)
					continue
				}
				if !all && !matchesSource(ev, want) {
					continue
				}
				if err := printEvent(out, msg, ev, time.Now()); err != nil {
					return err
				}
			}
		}
	},
}

// sourceOf returns the table an event is about.
func sourceOf(ev any) (events.Source, bool) {
	switch e := ev.(type) {
	case *events.TablePulled:
		return e.Source, true
	case *events.RecordAdded:
		return e.Source, true
	case *events.RecordUpdated:
		return e.Source, true
	case *events.RecordReplaced:
		return e.Source, true
	case *events.RecordDeleted:
		return e.Source, true
	}
	return events.Source{}, false
}

// matchesSource reports whether ev concerns want. Empty parts of want match
// anything; events without a source never match.
func matchesSource(ev any, want events.Source) bool {
	src, ok := sourceOf(ev)
	if !ok {
		return false
	}
	return src.Matches(want)
}

func describeEvent(ev any) string {
	switch e := ev.(type) {
	case *events.TablePulled:
		return fmt.Sprintf("pulled %d records", e.RecordCount)
	case *events.RecordAdded:
		return "added " + recordID(e.Record)
	case *events.RecordUpdated:
		return "updated " + recordID(e.Record)
	case *events.RecordReplaced:
		return "replaced " + recordID(e.Record)
	case *events.RecordDeleted:
		return "deleted " + e.RecordID
	}
	return fmt.Sprintf("%v", ev)
}

func recordID(r *model.Record) string {
	if r == nil {
		return "?"
	}
	return r.ID
}

func printEvent(w io.Writer, msg events.Message, ev any, at time.Time) error {
	if jsonOutput {
		line, err := json.Marshal(struct {
			Topic string          `json:"topic"`
			Event json.RawMessage `json:"event"`
		}{msg.Topic, msg.Data})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(line))
		return err
	}
	where := ""
	if src, ok := sourceOf(ev); ok {
		where = src.BaseID + "/" + src.Table + " "
	}
	_, err := fmt.Fprintf(w, "%s %s %s%s\n",
		ui.RenderMuted(at.Format("15:04:05")), ui.RenderAccent(msg.Topic), where, describeEvent(ev))
	return err
}

func init() {
	watchCmd.Flags().Bool("all", false, "show events for every table, not just the configured one")
}
