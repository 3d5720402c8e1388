package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/servoble/internal/state"
	"github.com/srg/servoble/internal/telemetry"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// decodeCmd prints captured attribute payloads the way a client sees them
var decodeCmd = &cobra.Command{
	Use:   "decode <response|worktime> <hex>",
	Short: "Decode a Control Response or WorkTime payload",
	Long: `Decodes a payload captured from the Control Response or WorkTime attribute.

Examples:
  # State snapshot: output 25 on, output 26 off, servo at 90 degrees
  servoble decode response 19011a005a

  # WorkTime counter (little-endian seconds)
  servoble decode worktime "05 00 00 00"

  # Machine-readable output
  servoble decode response 19011a005a --json`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"response", "worktime"},
	RunE:      runDecode,
}

var decodeJSON bool

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print the decoded fields as a JSON object")
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHex(args[1])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch args[0] {
	case "response":
		if decodeJSON {
			return printSnapshotJSON(w, data)
		}
		return printSnapshot(w, data)
	case "worktime":
		if decodeJSON {
			return printWorkTimeJSON(w, data)
		}
		return printWorkTime(w, data)
	default:
		return fmt.Errorf("unknown payload kind %q (must be response or worktime)", args[0])
	}
}

// parseHex accepts "19011a005a", "19 01 1a", "19:01:1a" and 0x prefixes
func parseHex(s string) ([]byte, error) {
	cleaned := strings.ReplaceAll(s, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, "0x", "")

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return data, nil
}

func printSnapshot(w io.Writer, data []byte) error {
	snap, err := state.Decode(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Output %d: %s\n", snap.LineA, onOff(snap.ValueA))
	fmt.Fprintf(w, "Output %d: %s\n", snap.LineB, onOff(snap.ValueB))
	fmt.Fprintf(w, "Servo: %s\n", color.CyanString("%d°", snap.Angle))
	return nil
}

func printWorkTime(w io.Writer, data []byte) error {
	seconds, err := telemetry.DecodeSeconds(data)
	if err != nil {
		return err
	}

	uptime := time.Duration(seconds) * time.Second
	fmt.Fprintf(w, "Work time: %s (%d s)\n", color.CyanString(uptime.String()), seconds)
	return nil
}

// printSnapshotJSON keeps the wire order of the fields; output keys carry the line number
func printSnapshotJSON(w io.Writer, data []byte) error {
	snap, err := state.Decode(data)
	if err != nil {
		return err
	}

	fields := orderedmap.New[string, any]()
	fields.Set(fmt.Sprintf("output_%d", snap.LineA), snap.ValueA)
	fields.Set(fmt.Sprintf("output_%d", snap.LineB), snap.ValueB)
	fields.Set("servo", snap.Angle)
	return writeJSON(w, fields)
}

func printWorkTimeJSON(w io.Writer, data []byte) error {
	seconds, err := telemetry.DecodeSeconds(data)
	if err != nil {
		return err
	}

	fields := orderedmap.New[string, any]()
	fields.Set("seconds", seconds)
	fields.Set("uptime", (time.Duration(seconds) * time.Second).String())
	return writeJSON(w, fields)
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func onOff(v bool) string {
	if v {
		return color.GreenString("on")
	}
	return color.RedString("off")
}
