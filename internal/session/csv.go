package session

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/teslashibe/go-gaze/internal/orientation"
)

// baseColumns are written for every row regardless of condition
var baseColumns = []string{
	"ID", "condition", "startTime", "endTime",
	"myTheta", "myDirection", "myWindowWidth", "mySmoothedWidth",
	"myStatusGaze", "myIsSpeaking", "myTranscript",
}

// remoteColumns are repeated once per remote participant as otherUserN_<name>
var remoteColumns = []string{
	"ID", "Theta", "Direction", "WindowWidth", "StatusGaze", "IsSpeaking", "Transcript",
}

// Header returns the CSV header for a log with the given number of remotes
func Header(remotes int) []string {
	header := append([]string(nil), baseColumns...)
	for n := 1; n <= remotes; n++ {
		for _, col := range remoteColumns {
			header = append(header, fmt.Sprintf("otherUser%d_%s", n, col))
		}
	}
	return header
}

// WriteCSV writes entries as CSV. The number of otherUserN column sets is the
// largest remote count of any entry; rows with fewer remotes leave them empty.
func WriteCSV(w io.Writer, entries []Entry) error {
	remotes := 0
	for _, e := range entries {
		if len(e.Remotes) > remotes {
			remotes = len(e.Remotes)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(remotes)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(row(e, remotes)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func row(e Entry, remotes int) []string {
	direction := string(e.Direction)
	if direction == "" && e.EndTime > 0 {
		direction = string(orientation.DirectionOf(e.Theta))
	}

	rec := []string{
		e.ParticipantID,
		strconv.Itoa(int(e.Condition)),
		formatFloat(e.StartTime),
		formatFloat(e.EndTime),
		formatFloat(e.Theta),
		direction,
		formatFloat(e.WindowWidth),
		formatFloat(e.SmoothedWidth),
		string(e.GazeStatus),
		strconv.FormatBool(e.IsSpeaking),
		e.Transcript,
	}

	for n := 0; n < remotes; n++ {
		if n >= len(e.Remotes) {
			rec = append(rec, make([]string, len(remoteColumns))...)
			continue
		}
		r := e.Remotes[n]
		rec = append(rec,
			r.ID,
			formatFloat(r.Transform.Theta),
			string(orientation.DirectionOf(r.Transform.Theta)),
			formatFloat(r.Transform.WidthInCaseOfChange),
			string(r.Transform.GazeStatus),
			strconv.FormatBool(r.Transform.IsSpeaking),
			r.Transform.Transcript,
		)
	}

	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
