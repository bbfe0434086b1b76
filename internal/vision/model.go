package vision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"

	"github.com/sheero-ai/sheero/internal/signal"
)

// Model scores drowsiness with an ONNX classifier over a sliding window of
// recent eye-aspect-ratio and head-bow samples. The bundle directory holds
// the model plus its cutoffs:
//
//	drowsiness.onnx
//	thresholds.yaml   (score cutoff, window length)
//
// Until the window fills, the model defers to the heuristic so the engine
// is never blind during warmup.
type Model struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	window    int
	score     float32
	fallback  Heuristic
	earWindow []float32
	bowWindow []float32

	mu sync.Mutex
}

type bundleThresholds struct {
	Score  float32 `yaml:"score"`
	Window int     `yaml:"window"`
}

// LoadModel initializes the ONNX session from a bundle directory. fallback
// covers the warmup window and any inference error.
func LoadModel(bundleDir string, fallback Heuristic) (*Model, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}

	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath == "" {
		return nil, fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(bundleDir, "drowsiness.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	th, err := loadBundleThresholds(filepath.Join(bundleDir, "thresholds.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}

	// Input features interleave [ear, head_bow] per frame.
	inputShape := ort.NewShape(1, int64(th.Window*2))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate features tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return nil, fmt.Errorf("allocate score tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"features"},
		[]string{"score"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Model{
		session:  session,
		input:    input,
		output:   output,
		window:   th.Window,
		score:    th.Score,
		fallback: fallback,
	}, nil
}

// Drowsy pushes the frame into the window and, once full, runs inference.
func (m *Model) Drowsy(metric signal.DriverMetric) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.earWindow = append(m.earWindow, float32(metric.EyeAspectRatio))
	m.bowWindow = append(m.bowWindow, float32(metric.HeadBowDelta))
	if len(m.earWindow) > m.window {
		m.earWindow = m.earWindow[1:]
		m.bowWindow = m.bowWindow[1:]
	}
	if len(m.earWindow) < m.window {
		return m.fallback.Drowsy(metric)
	}

	data := m.input.GetData()
	for i := 0; i < m.window; i++ {
		data[i*2] = m.earWindow[i]
		data[i*2+1] = m.bowWindow[i]
	}
	if err := m.session.Run(); err != nil {
		return m.fallback.Drowsy(metric)
	}
	return m.output.GetData()[0] >= m.score
}

// Destroy releases the session and tensors.
func (m *Model) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
}

func loadBundleThresholds(path string) (bundleThresholds, error) {
	th := bundleThresholds{Score: 0.6, Window: 32}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return th, nil
		}
		return th, err
	}
	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, err
	}
	if th.Window <= 0 {
		th.Window = 32
	}
	if th.Score <= 0 {
		th.Score = 0.6
	}
	return th, nil
}

// resolveSharedLibraryPath locates a platform onnxruntime shared library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common names and
// locations are probed.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
