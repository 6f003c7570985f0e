package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/sirupsen/logrus"

	"github.com/matrix-org/eventview/eventview/synctypes"
	"github.com/matrix-org/eventview/internal/eventutil"
)

// This is a utility for inspecting what the event view makes of a dump of
// client events without running the server. It reads one JSON event per
// line and writes one JSON projection per line.
//
// Usage: ./eventview-project [--input=events.ndjson] [--skip-empty]
//   e.g. ./eventview-project < events.ndjson | jq .

var (
	inputPath = flag.String("input", "", "the file to read events from, defaults to stdin")
	skipEmpty = flag.Bool("skip-empty", false, "omit events that produce no projection")
)

// maxLineSize bounds a single event. Matrix caps PDUs at 64KiB but decrypted
// payloads are carried alongside, so leave some headroom.
const maxLineSize = 1024 * 1024

type projection struct {
	EventID   string                         `json:"event_id"`
	Member    *synctypes.RoomMemberContent   `json:"member,omitempty"`
	Decrypted *synctypes.ValidDecryptedEvent `json:"decrypted,omitempty"`
}

func main() {
	flag.Parse()

	in := io.Reader(os.Stdin)
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			logrus.WithError(err).Fatalf("failed to open %s", *inputPath)
		}
		defer f.Close() // nolint: errcheck
		in = f
	}

	out := bufio.NewWriter(os.Stdout)
	stats, err := project(in, out, *skipEmpty)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		logrus.WithError(err).Fatal("projection failed")
	}
	logrus.WithFields(logrus.Fields{
		"events":    stats.events,
		"members":   stats.members,
		"decrypted": stats.decrypted,
		"invalid":   stats.invalid,
	}).Info("Finished projecting events")
}

type projectStats struct {
	events, members, decrypted, invalid int
}

// project reads newline-delimited client events from r and writes the
// member and decrypted projections of each to w. Lines that are not valid
// events are logged and skipped.
func project(r io.Reader, w io.Writer, skipEmpty bool) (projectStats, error) {
	var stats projectStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			stats.invalid++
			logrus.WithField("line", line).Warn("Skipping line that is not JSON")
			continue
		}
		var ev synctypes.ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			stats.invalid++
			logrus.WithError(err).WithField("line", line).Warn("Skipping line that is not an event")
			continue
		}
		stats.events++

		p := projection{EventID: ev.EventID}
		if ev.Type == spec.MRoomMember {
			p.Member = eventutil.FixedRoomMemberContent(&ev)
		}
		p.Decrypted = eventutil.ToValidDecryptedEvent(&ev)
		if p.Member != nil {
			stats.members++
		}
		if p.Decrypted != nil {
			stats.decrypted++
		}
		if skipEmpty && p.Member == nil && p.Decrypted == nil {
			continue
		}
		if err := enc.Encode(p); err != nil {
			return stats, fmt.Errorf("failed to write projection for line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read events: %w", err)
	}
	return stats, nil
}
