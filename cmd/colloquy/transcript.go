package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/transcript"
	"github.com/go-go-golems/colloquy/pkg/turns"
	"github.com/go-go-golems/colloquy/pkg/turns/serde"
)

// The transcript commands work on YAML transcript files without a database,
// which is how stored conversations are inspected and repaired offline.
func newTranscriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect stored transcripts",
	}
	cmd.AddCommand(newTranscriptUICommand(), newTranscriptSanitizeCommand(), newTranscriptPrintCommand())
	return cmd
}

func newTranscriptUICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui FILE",
		Short: "Fold a stored transcript into the messages the UI displays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := serde.LoadTranscriptYAML(args[0])
			if err != nil {
				return errors.Wrapf(err, "load %s", args[0])
			}
			msgs := transcript.ToUIView(ts)
			if sanitize, _ := cmd.Flags().GetBool("sanitize"); sanitize {
				msgs = transcript.SanitizeUIView(msgs)
			}
			if pending, _ := cmd.Flags().GetBool("pending"); pending {
				return writeOutput(cmd, transcript.PendingToolCalls(msgs))
			}
			if prompt, _ := cmd.Flags().GetBool("prompt"); prompt {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), conversation.Conversation(msgs).GetSinglePrompt())
				return err
			}
			return writeOutput(cmd, msgs)
		},
	}
	cmd.Flags().Bool("sanitize", false, "Drop unresolved tool invocations and empty messages")
	cmd.Flags().Bool("pending", false, "Only list tool invocations still waiting for a result")
	cmd.Flags().Bool("prompt", false, "Print the messages as a single role-prefixed prompt")
	cmd.Flags().String("output", "yaml", "Output format (yaml, json)")
	return cmd
}

func newTranscriptSanitizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanitize FILE",
		Short: "Drop unanswered tool calls and empty blocks from generated turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := serde.LoadTranscriptYAML(args[0])
			if err != nil {
				return errors.Wrapf(err, "load %s", args[0])
			}
			reasoning, _ := cmd.Flags().GetString("reasoning")
			sanitized := transcript.SanitizeGeneratedTurns(ts, reasoning)

			if out, _ := cmd.Flags().GetString("out"); out != "" {
				return serde.SaveTranscriptYAML(out, sanitized)
			}
			b, err := serde.ToYAML(sanitized)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().String("reasoning", "", "Reasoning text to attach to structured assistant turns")
	cmd.Flags().String("out", "", "Write the sanitized transcript to this file instead of stdout")
	return cmd
}

func newTranscriptPrintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "print FILE",
		Short: "Print a stored transcript in a readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := serde.LoadTranscriptYAML(args[0])
			if err != nil {
				return errors.Wrapf(err, "load %s", args[0])
			}
			turns.FprintTranscript(cmd.OutOrStdout(), ts)
			return nil
		},
	}
}

func writeOutput(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	return encode(cmd.OutOrStdout(), format, v)
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		// round trip through JSON so the yaml keys match the wire format
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}
