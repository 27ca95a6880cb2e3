package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/cli/render"
	"github.com/pithecene-io/assay/iox"
	"github.com/pithecene-io/assay/journal"
	"github.com/pithecene-io/assay/session"
)

// ReplayCommand returns the replay command.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Rebuild a session from its event journal",
		ArgsUsage: "<session.journal>",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "content",
				Usage: "Print the accumulated content instead of the summary",
			},
		}, RenderFlags()...),
		Action: replayAction,
	}
}

// replayOutput is the rendered shape of a rebuilt session.
type replayOutput struct {
	SessionID       string   `json:"session_id,omitempty"`
	Entries         int      `json:"entries"`
	Truncated       bool     `json:"truncated,omitempty"`
	State           string   `json:"state"`
	JobID           string   `json:"job_id,omitempty"`
	Iterations      int      `json:"iterations,omitempty"`
	ToolsUsed       []string `json:"tools_used,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	ContentBytes    int      `json:"content_bytes"`
}

func (o replayOutput) SummaryFields() []render.Field {
	fields := []render.Field{
		{Name: "session_id", Value: o.SessionID},
		{Name: "state", Value: o.State},
		{Name: "entries", Value: strconv.Itoa(o.Entries)},
	}
	if o.Truncated {
		fields = append(fields, render.Field{Name: "truncated", Value: "true"})
	}
	if o.JobID != "" {
		fields = append(fields, render.Field{Name: "job_id", Value: o.JobID})
	}
	if o.Iterations > 0 {
		fields = append(fields, render.Field{Name: "iterations", Value: strconv.Itoa(o.Iterations)})
	}
	if len(o.ToolsUsed) > 0 {
		fields = append(fields, render.Field{Name: "tools_used", Value: strings.Join(o.ToolsUsed, ", ")})
	}
	if o.DurationSeconds > 0 {
		fields = append(fields, render.Field{Name: "duration_seconds", Value: strconv.FormatFloat(o.DurationSeconds, 'f', -1, 64)})
	}
	if o.ErrorMessage != "" {
		fields = append(fields, render.Field{Name: "error", Value: o.ErrorMessage})
	}
	fields = append(fields, render.Field{Name: "content_bytes", Value: strconv.Itoa(o.ContentBytes)})
	return fields
}

func replayAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("replay requires exactly one journal file")
	}

	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer iox.DiscardClose(f)

	result, sessionID, entries, truncated, err := rebuildSession(f)
	if err != nil {
		return err
	}

	if c.Bool("content") {
		fmt.Print(result.Content)
		return nil
	}

	return renderer.Render(replayOutput{
		SessionID:       sessionID,
		Entries:         entries,
		Truncated:       truncated,
		State:           string(result.State),
		JobID:           result.JobID,
		Iterations:      result.Iterations,
		ToolsUsed:       result.ToolsUsed,
		DurationSeconds: result.DurationSeconds,
		ErrorMessage:    result.ErrorMessage,
		ContentBytes:    len(result.Content),
	})
}

// rebuildSession replays every complete journal entry into a fresh
// session. A partial trailing frame is expected after a writer crash;
// everything before it replays normally and truncated is set.
func rebuildSession(r io.Reader) (result *session.Result, sessionID string, entries int, truncated bool, err error) {
	sess := session.New()
	reader := journal.NewReader(r)

	for {
		entry, readErr := reader.Next()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if journal.IsPartialFrameError(readErr) {
				truncated = true
				break
			}
			return nil, "", 0, false, fmt.Errorf("read journal: %w", readErr)
		}
		if sessionID == "" {
			sessionID = entry.SessionID
		}
		sess.Apply(entry.Event)
		entries++
	}

	return sess.Result(), sessionID, entries, truncated, nil
}
