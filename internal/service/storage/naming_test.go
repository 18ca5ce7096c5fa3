package storage

import (
	"testing"
	"time"

	"pettracker/internal/model"
)

func TestSnapshotFilename(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	tests := []struct {
		name string
		det  model.Detection
		want string
	}{
		{"basic", model.Detection{Timestamp: ts, CameraID: "cam1", Confidence: 0.956, ClassName: "dog"}, "20240309_070501_cam1_0.96_dog.jpg"},
		{"underscore camera", model.Detection{Timestamp: ts, CameraID: "back_yard", Confidence: 0.9, ClassName: "cat"}, "20240309_070501_back_yard_0.90_cat.jpg"},
		{"unsafe names", model.Detection{Timestamp: ts, CameraID: "../etc", Confidence: 1, ClassName: "hot dog_x"}, "20240309_070501_--etc_1.00_hot-dog-x.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapshotFilename(&tt.det); got != tt.want {
				t.Errorf("SnapshotFilename = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestParseSnapshotFilename(t *testing.T) {
	det := model.Detection{
		Timestamp:  time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC),
		CameraID:   "back_yard",
		Confidence: 0.93,
		ClassName:  "dog",
	}
	name := SnapshotFilename(&det)

	snap, err := ParseSnapshotFilename(name, time.UTC)
	if err != nil {
		t.Fatalf("ParseSnapshotFilename(%q): %v", name, err)
	}
	if snap.Filename != name || snap.CameraID != "back_yard" || snap.ClassName != "dog" ||
		snap.Confidence != 0.93 || !snap.Timestamp.Equal(det.Timestamp) {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	for _, bad := range []string{
		"notes.txt",
		"20240309_070501_cam1.jpg",
		"2024-03-09_070501_cam1_0.90_dog.jpg",
		"20240309_070501_cam1_high_dog.jpg",
	} {
		if _, err := ParseSnapshotFilename(bad, time.UTC); err == nil {
			t.Errorf("ParseSnapshotFilename(%q) should fail", bad)
		}
	}
}
