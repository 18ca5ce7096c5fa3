package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pettracker/internal/model"
)

const (
	snapshotExt    = ".jpg"
	snapshotLayout = "20060102_150405"
)

var nameReplacer = strings.NewReplacer("/", "-", `\`, "-", " ", "-", "..", "-")

// SnapshotFilename names the snapshot of a detection:
// YYYYMMDD_HHMMSS_{camera}_{confidence:.2f}_{class}.jpg. The same detection
// always yields the same name. Path separators are replaced, and the class
// name loses its underscores so the name can be parsed back.
func SnapshotFilename(d *model.Detection) string {
	camera := nameReplacer.Replace(d.CameraID)
	class := strings.ReplaceAll(nameReplacer.Replace(d.ClassName), "_", "-")
	return fmt.Sprintf("%s_%s_%.2f_%s%s", d.Timestamp.Format(snapshotLayout), camera, d.Confidence, class, snapshotExt)
}

// ParseSnapshotFilename recovers the metadata encoded by SnapshotFilename.
// The timestamp is interpreted in loc.
func ParseSnapshotFilename(name string, loc *time.Location) (model.Snapshot, error) {
	base, ok := strings.CutSuffix(name, snapshotExt)
	if !ok {
		return model.Snapshot{}, fmt.Errorf("snapshot %q: not a %s file", name, snapshotExt)
	}

	parts := strings.Split(base, "_")
	if len(parts) < 5 {
		return model.Snapshot{}, fmt.Errorf("snapshot %q: expected date_time_camera_confidence_class", name)
	}

	ts, err := time.ParseInLocation(snapshotLayout, parts[0]+"_"+parts[1], loc)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %q: bad timestamp: %w", name, err)
	}
	n := len(parts)
	conf, err := strconv.ParseFloat(parts[n-2], 64)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %q: bad confidence: %w", name, err)
	}

	return model.Snapshot{
		Filename:   name,
		CameraID:   strings.Join(parts[2:n-2], "_"),
		ClassName:  parts[n-1],
		Confidence: conf,
		Timestamp:  ts,
	}, nil
}
