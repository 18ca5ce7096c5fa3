package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"pettracker/internal/model"
)

type Config struct {
	Port           int
	APIPrefix      string
	AllowedOrigins []string

	LogDirectory  string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Cameras is empty when CAM_PROXY_CONFIG could not be parsed; the
	// parse error is kept in CameraConfigErr so startup can report it.
	Cameras         []model.Camera
	CameraConfigErr error

	ModelID             string
	ConfidenceThreshold float64
	DetectionInterval   time.Duration
	DetectorStopTimeout time.Duration

	ClassifierBackend string
	ClassifierTimeout time.Duration
	RoboflowAPIURL    string
	RoboflowAPIKey    string
	ModelPath         string
	ConfigPath        string
	DNNMinConfidence  float64

	FrameWidth  int
	FrameHeight int
	FFmpegPath  string

	SnapshotDirectory string
	SnapshotQuality   int

	DatabaseDriver string
	DatabasePath   string
	MongoURI       string
	MongoDatabase  string

	EventQueueSize      int
	KeepAliveInterval   time.Duration
	BootstrapDetections int
	BootstrapSnapshots  int
}

// Load reads the given .env files (".env" when none are named) into the
// process environment and builds a Config from it. Missing env files are
// not an error.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	cameras, camErr := ParseCameras(getEnv("CAM_PROXY_CONFIG", "[]"))

	return &Config{
		Port:           getEnvAsInt("PORT", 8000),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost"}),

		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),

		Cameras:         cameras,
		CameraConfigErr: camErr,

		ModelID:             getEnv("ROBOFLOW_MODEL_ID", ""),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.9),
		DetectionInterval:   getEnvAsDuration("DETECTION_INTERVAL", time.Second),
		DetectorStopTimeout: getEnvAsDuration("DETECTOR_STOP_TIMEOUT", 5*time.Second),

		ClassifierBackend: strings.ToLower(getEnv("CLASSIFIER_BACKEND", "roboflow")),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 0),
		RoboflowAPIURL:    getEnv("ROBOFLOW_API_URL", "https://detect.roboflow.com"),
		RoboflowAPIKey:    getEnv("ROBOFLOW_API_KEY", ""),
		ModelPath:         getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:        getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		DNNMinConfidence:  getEnvAsFloat("DNN_MIN_CONFIDENCE", 0.5),

		FrameWidth:  getEnvAsInt("FRAME_WIDTH", 640),
		FrameHeight: getEnvAsInt("FRAME_HEIGHT", 480),
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),

		SnapshotDirectory: getEnv("SNAPSHOT_DIR", filepath.Join("app", "snapshots")),
		SnapshotQuality:   getEnvAsInt("SNAPSHOT_QUALITY", 85),

		DatabaseDriver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "data", "pettracker.db")),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "pettracker"),

		EventQueueSize:      getEnvAsInt("EVENT_QUEUE_SIZE", 256),
		KeepAliveInterval:   getEnvAsDuration("WS_KEEPALIVE", 5*time.Second),
		BootstrapDetections: getEnvAsInt("BOOTSTRAP_DETECTIONS", 10),
		BootstrapSnapshots:  getEnvAsInt("BOOTSTRAP_SNAPSHOTS", 5),
	}
}

type cameraEntry struct {
	Name      string `json:"name"`
	StreamURL string `json:"stream_url"`
}

// ParseCameras decodes the camera list, a JSON array of
// {"name": ..., "stream_url": ...} objects.
func ParseCameras(raw string) ([]model.Camera, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var entries []cameraEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("camera config is not valid JSON: %w", err)
	}

	cameras := make([]model.Camera, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" || e.StreamURL == "" {
			return nil, fmt.Errorf("camera config entry %d must have 'name' and 'stream_url' fields", i)
		}
		cameras = append(cameras, model.Camera{ID: e.Name, URL: e.StreamURL})
	}
	return cameras, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := cast.ToIntE(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := cast.ToFloat64E(value); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("500ms") or a plain number
// of seconds ("1.5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	if secs, err := cast.ToFloat64E(value); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
