package model

import (
	"math"
	"testing"
)

func TestDetection_Validate(t *testing.T) {
	tests := []struct {
		name    string
		det     Detection
		wantErr bool
	}{
		{"valid", Detection{CameraID: "cam1", Confidence: 0.5, ClassID: 0}, false},
		{"confidence bounds", Detection{CameraID: "cam1", Confidence: 1}, false},
		{"confidence above one", Detection{CameraID: "cam1", Confidence: 1.01}, true},
		{"negative confidence", Detection{CameraID: "cam1", Confidence: -0.1}, true},
		{"NaN confidence", Detection{CameraID: "cam1", Confidence: math.NaN()}, true},
		{"negative class id", Detection{CameraID: "cam1", Confidence: 0.5, ClassID: -1}, true},
		{"missing camera", Detection{Confidence: 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.det.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrame_Clone(t *testing.T) {
	f := Frame{Width: 1, Height: 1, Seq: 4, Data: []byte{1, 2, 3}}
	c := f.Clone()
	c.Data[0] = 9

	if f.Data[0] != 1 {
		t.Error("Clone must not share Data with the original")
	}
	if c.Seq != 4 || c.Width != 1 || c.Height != 1 {
		t.Errorf("Clone lost metadata: %+v", c)
	}
	if FrameSize(640, 480) != 921600 {
		t.Errorf("FrameSize(640, 480) = %d", FrameSize(640, 480))
	}
}
