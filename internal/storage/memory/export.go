package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skytether/libration/pkg/core"
)

// ExportVersion is bumped when the sample row layout changes.
const ExportVersion = 1

// SessionExport is the root JSON structure
type SessionExport struct {
	Version         int                 `json:"version"`
	SessionID       string              `json:"sessionId"`
	Name            string              `json:"name"`
	BodyA           string              `json:"bodyA"`
	BodyB           string              `json:"bodyB"`
	Host            string              `json:"host"`
	StartTime       time.Time           `json:"startTime"`
	EndTime         time.Time           `json:"endTime"`
	SimStart        float64             `json:"simStart"`
	IntervalMs      int64               `json:"intervalMs"`
	CameraUnitScale float64             `json:"cameraUnitScale"`
	Summary         core.SessionSummary `json:"summary"`
	Samples         [][]any             `json:"samples"`
}

// exportJSON writes the session to a JSON or gzipped JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := b.session.Name
	if name == "" {
		name = b.session.BodyA + "-" + b.session.BodyB
	}
	name = strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(name)
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	s := b.session
	end := s.EndTime
	if end.IsZero() {
		end = time.Now().UTC()
	}

	export := SessionExport{
		Version:         ExportVersion,
		SessionID:       s.ID.String(),
		Name:            s.Name,
		BodyA:           s.BodyA,
		BodyB:           s.BodyB,
		Host:            s.Host,
		StartTime:       s.StartTime,
		EndTime:         end,
		SimStart:        s.SimStart,
		IntervalMs:      s.Interval.Milliseconds(),
		CameraUnitScale: s.CameraUnitScale,
		Summary:         b.lastSummary,
		Samples:         make([][]any, 0, len(b.samples)),
	}

	for _, smp := range b.samples {
		var camPos, camDir, camUp any
		if smp.Camera != nil {
			camPos, camDir, camUp = smp.Camera.Position, smp.Camera.Direction, smp.Camera.Up
		}
		export.Samples = append(export.Samples, []any{
			smp.Seq,            // [0] seq
			smp.SimTime,        // [1] sim time
			smp.Outcome,        // [2] outcome
			smp.State,          // [3] state after the tick
			smp.Tied.Position,  // [4] tied position
			smp.Tied.Direction, // [5] tied direction
			smp.Tied.Up,        // [6] tied up
			camPos,             // [7] pushed position, null if not pushed
			camDir,             // [8] pushed direction
			camUp,              // [9] pushed up
		})
	}

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
