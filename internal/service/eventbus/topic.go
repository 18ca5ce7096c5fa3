package eventbus

import (
	"fmt"
	"strings"
	"time"

	"pettracker/internal/model"
)

// Topic names one event channel.
type Topic int

const (
	// TopicDetectionMade carries every detection.
	TopicDetectionMade Topic = iota + 1
	// TopicHighConfidenceDetectionMade carries detections whose confidence
	// strictly exceeds the configured threshold.
	TopicHighConfidenceDetectionMade
	// TopicSnapshotMade is published by the snapshot writer after a file is stored.
	TopicSnapshotMade
	TopicCameraConnected
	TopicCameraDisconnected
)

var topicNames = map[Topic]string{
	TopicDetectionMade:               "detection_made",
	TopicHighConfidenceDetectionMade: "high_confidence_detection_made",
	TopicSnapshotMade:                "snapshot_made",
	TopicCameraConnected:             "camera_connected",
	TopicCameraDisconnected:          "camera_disconnected",
}

// Topics lists every topic in declaration order.
func Topics() []Topic {
	return []Topic{
		TopicDetectionMade,
		TopicHighConfidenceDetectionMade,
		TopicSnapshotMade,
		TopicCameraConnected,
		TopicCameraDisconnected,
	}
}

func (t Topic) String() string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	return fmt.Sprintf("topic(%d)", int(t))
}

// Valid reports whether t is a known topic.
func (t Topic) Valid() bool {
	_, ok := topicNames[t]
	return ok
}

// ParseTopic resolves a topic from its wire name.
func ParseTopic(name string) (Topic, error) {
	for t, n := range topicNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, name)
}

// ParseTopicList resolves a comma-separated list of wire names. Blank
// entries are ignored, so an empty list yields no topics.
func ParseTopicList(raw string) ([]Topic, error) {
	var topics []Topic
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		t, err := ParseTopic(name)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, nil
}

// Event is the payload delivered to handlers. Frame and Detection are shared
// between all handlers of one publish and must be treated as read-only.
type Event struct {
	Topic     Topic
	Time      time.Time
	CameraID  string
	Detection *model.Detection
	Frame     *model.Frame
	Snapshot  *model.Snapshot
}
