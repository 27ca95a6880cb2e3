package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/assay/canon"
	"github.com/pithecene-io/assay/cli/render"
	"github.com/pithecene-io/assay/types"
)

// CanonCommand returns the canon command.
func CanonCommand() *cli.Command {
	return &cli.Command{
		Name:      "canon",
		Usage:     "Canonicalize message tool calls (dedup by id, strip UI fields)",
		ArgsUsage: "<message.json | ->",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "dropped",
				Usage: "Also report how many duplicate calls were dropped",
			},
		}, RenderFlags()...),
		Action: canonAction,
	}
}

// canonOutput is the rendered shape for one canonicalized message. In
// table format the surviving tool calls are the rows and the message
// attributes the summary block.
type canonOutput struct {
	Message types.CanonicalMessage `json:"message"`
	Dropped *int                   `json:"dropped,omitempty"`
}

func (o canonOutput) TableColumns() []string {
	return []string{"id", "action"}
}

func (o canonOutput) TableRows() [][]string {
	rows := make([][]string, 0, len(o.Message.ToolCalls))
	for _, call := range o.Message.ToolCalls {
		rows = append(rows, []string{call.ID, call.Action})
	}
	return rows
}

func (o canonOutput) SummaryFields() []render.Field {
	fields := []render.Field{
		{Name: "role", Value: o.Message.Role},
		{Name: "active_tool_call_id", Value: o.Message.ActiveToolCallID},
	}
	if o.Dropped != nil {
		fields = append(fields, render.Field{Name: "dropped", Value: strconv.Itoa(*o.Dropped)})
	}
	return fields
}

func canonAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("canon requires exactly one message file (or - for stdin)")
	}

	renderer, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	data, err := readInput(c.Args().First())
	if err != nil {
		return err
	}

	messages, single, err := decodeMessages(data)
	if err != nil {
		return err
	}

	outputs := make([]canonOutput, 0, len(messages))
	for _, msg := range messages {
		out := canonOutput{Message: canon.Normalize(msg)}
		if c.Bool("dropped") {
			dropped := canon.Dropped(msg)
			out.Dropped = &dropped
		}
		outputs = append(outputs, out)
	}

	if single {
		return renderer.Render(outputs[0])
	}
	return renderer.Render(outputs)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message file: %w", err)
	}
	return data, nil
}

// decodeMessages accepts one message object or a JSON array of messages.
func decodeMessages(data []byte) (messages []types.Message, single bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return nil, false, fmt.Errorf("invalid message JSON: %w", err)
		}
		return messages, false, nil
	}

	var msg types.Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, false, fmt.Errorf("invalid message JSON: %w", err)
	}
	return []types.Message{msg}, true, nil
}
