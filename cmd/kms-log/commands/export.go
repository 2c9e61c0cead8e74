package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kms-core/kms-go/pkg/log"
)

// RunExport exports the trace file to the specified format.
func RunExport(path, format, output string) error {
	switch format {
	case "jsonl", "csv":
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return eachEvent(reader, func(event log.Event) error {
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

var csvHeader = []string{"timestamp", "session_id", "device", "minor", "category", "command", "phase", "errno", "duration_ns", "object", "detail"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := eachEvent(reader, func(event log.Event) error {
		return cw.Write(csvRow(event))
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(event log.Event) []string {
	var command, phase, errno, duration, object, detail string
	switch {
	case event.Ioctl != nil:
		command = event.Ioctl.Name
		phase = event.Ioctl.Phase.String()
		errno = strconv.FormatUint(uint64(event.Ioctl.Errno), 10)
		duration = strconv.FormatInt(event.Ioctl.Duration.Nanoseconds(), 10)
		if event.Ioctl.Object != 0 {
			object = strconv.FormatUint(uint64(event.Ioctl.Object), 10)
		}
	case event.StateChange != nil:
		detail = event.StateChange.Entity.String() + " " + event.StateChange.OldState + "->" + event.StateChange.NewState
	case event.Snapshot != nil:
		detail = event.Snapshot.Reason
	case event.Error != nil:
		detail = event.Error.Message
	}

	return []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.SessionID,
		strconv.FormatUint(uint64(event.Device), 10),
		event.Minor,
		event.Category.String(),
		command,
		phase,
		errno,
		duration,
		object,
		detail,
	}
}
