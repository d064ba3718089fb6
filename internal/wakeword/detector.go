// Package wakeword provides real-time wake-word detection using the
// openWakeWord ONNX pipeline: melspectrogram → embedding → wakeword.
//
// The detector opens a single audio capture device via miniaudio
// (malgo), feeds 80 ms chunks through three ONNX models, and fires a
// callback when the wake-word score exceeds a threshold. All model
// files and the ONNX Runtime shared library must be provided at
// construction time.
package wakeword

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/mirepoix/souschef/internal/logger"
)

// Constants matching the openWakeWord pipeline.
const (
	sampleRate   = 16000
	chunkSamples = 1280 // 80 ms @ 16 kHz
	audioQueue   = 32
	melWindow    = 76 // embedding model needs 76 mel frames
	melStep      = 8  // step between embedding windows
	embeddingDim = 96 // output dim per embedding frame
	nEmbedFrames = 16 // wakeword model needs 16 embedding frames
	melBins      = 32 // melspectrogram output bands
	nMelFrames   = 5  // 1280 samples → 5 mel frames

	// scoreWindow is the number of recent scores to track. The detector
	// triggers on the max within the window, which compensates for
	// frame-alignment variance around the peak.
	scoreWindow = 5

	// recentEmbeds is how many of the most recent embedding slots are
	// passed to the wakeword model; older slots are zeroed so silence
	// embeddings never accumulate and suppress detection.
	recentEmbeds = 5
)

// Config holds the paths and tuning knobs for a Detector.
type Config struct {
	// Model paths (required).
	WakewordModel  string // e.g. "models/hey_chef.onnx"
	MelspecModel   string // e.g. "bin/melspectrogram.onnx"
	EmbeddingModel string // e.g. "bin/embedding_model.onnx"
	OnnxLib        string // e.g. "bin/libonnxruntime.so"

	// Detection tuning.
	Threshold float64       // score ≥ threshold → detected
	Cooldown  time.Duration // min time between detections
}

func (c *Config) defaults() {
	if c.Threshold <= 0 {
		c.Threshold = 0.3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 1500 * time.Millisecond
	}
}

// Detector listens for the wake word continuously and fires OnDetected.
type Detector struct {
	cfg Config
	log *logger.Logger

	// OnDetected fires (from the processing goroutine) on detection.
	// Set before calling Start.
	OnDetected func()

	mu         sync.Mutex
	paused     bool
	needsReset bool // set on Resume to flush stale pipeline state
}

// New creates a Detector. Call Start to begin listening.
func New(cfg Config, log *logger.Logger) *Detector {
	cfg.defaults()
	return &Detector{cfg: cfg, log: log}
}

// Pause temporarily stops detecting, e.g. while the recognizer owns the
// microphone or narration is playing loudly enough to echo.
func (d *Detector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume re-enables detection after a Pause.
func (d *Detector) Resume() {
	d.mu.Lock()
	d.paused = false
	d.needsReset = true
	d.mu.Unlock()
}

func (d *Detector) isPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// checkReset returns true (once) if Resume was called, signaling the
// processing loop to flush all stale pipeline buffers.
func (d *Detector) checkReset() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.needsReset {
		d.needsReset = false
		return true
	}
	return false
}

// pipeline holds the three ONNX sessions and their bound tensors.
type pipeline struct {
	melIn, melOut     *ort.Tensor[float32]
	embedIn, embedOut *ort.Tensor[float32]
	wwIn, wwOut       *ort.Tensor[float32]

	melSess   *ort.AdvancedSession
	embedSess *ort.AdvancedSession
	wwSess    *ort.AdvancedSession
}

func newSession(modelPath string, in, out ort.Value) (*ort.AdvancedSession, error) {
	inInfo, outInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, err
	}
	return ort.NewAdvancedSession(
		modelPath,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{in}, []ort.Value{out},
		nil,
	)
}

func newPipeline(cfg Config) (*pipeline, error) {
	p := &pipeline{}
	var err error

	if p.melIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, chunkSamples)); err != nil {
		return nil, err
	}
	if p.melOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, nMelFrames, melBins)); err != nil {
		return nil, err
	}
	if p.embedIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, melWindow, melBins, 1)); err != nil {
		return nil, err
	}
	if p.embedOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, 1, embeddingDim)); err != nil {
		return nil, err
	}
	if p.wwIn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, nEmbedFrames, embeddingDim)); err != nil {
		return nil, err
	}
	if p.wwOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return nil, err
	}

	if p.melSess, err = newSession(cfg.MelspecModel, p.melIn, p.melOut); err != nil {
		return nil, err
	}
	if p.embedSess, err = newSession(cfg.EmbeddingModel, p.embedIn, p.embedOut); err != nil {
		return nil, err
	}
	if p.wwSess, err = newSession(cfg.WakewordModel, p.wwIn, p.wwOut); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *pipeline) destroy() {
	for _, s := range []*ort.AdvancedSession{p.wwSess, p.embedSess, p.melSess} {
		if s != nil {
			s.Destroy()
		}
	}
	for _, t := range []*ort.Tensor[float32]{p.wwOut, p.wwIn, p.embedOut, p.embedIn, p.melOut, p.melIn} {
		if t != nil {
			t.Destroy()
		}
	}
}

// Start initialises the ONNX models and the audio capture device, then
// processes audio in a blocking loop until ctx is cancelled. Run this
// in its own goroutine.
func (d *Detector) Start(ctx context.Context) error {
	d.log.Debug("wakeword: initializing ONNX runtime (lib=%s)", d.cfg.OnnxLib)
	ort.SetSharedLibraryPath(d.cfg.OnnxLib)
	if err := ort.InitializeEnvironment(); err != nil {
		d.log.Error("wakeword: ONNX init failed: %v", err)
		return err
	}
	defer ort.DestroyEnvironment()

	pipe, err := newPipeline(d.cfg)
	if err != nil {
		return err
	}
	defer pipe.destroy()

	// Audio capture via miniaudio.
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(_ string) {})
	if err != nil {
		return err
	}
	defer func() { _ = mCtx.Uninit(); mCtx.Free() }()

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = sampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1

	audioCh := make(chan []int16, audioQueue)
	var audioDrops atomic.Int64

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			n := len(raw) / 2
			pcm := make([]int16, n)
			for i := 0; i < n; i++ {
				pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			}
			select {
			case audioCh <- pcm:
			default:
				audioDrops.Add(1)
			}
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		return err
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		d.log.Error("wakeword: audio device start failed: %v", err)
		return err
	}
	defer device.Stop()
	d.log.Debug("wakeword: audio capture started (rate=%d, chunk=%d)", sampleRate, chunkSamples)

	st := &detectState{
		melBuffer:   make([]float32, 0, 300*melBins),
		embedBuffer: make([]float32, nEmbedFrames*embeddingDim),
		audioRem:    make([]int16, 0, chunkSamples*2),
		scores:      make([]float32, scoreWindow),
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame := <-audioCh:
			if d.isPaused() {
				continue
			}
			if d.checkReset() {
				st.reset()
				d.log.Debug("wakeword: pipeline buffers reset after resume")
			}
			d.process(pipe, st, frame)
		}
	}
}

// detectState is the rolling buffer state between audio frames.
type detectState struct {
	melBuffer   []float32
	embedBuffer []float32
	audioRem    []int16
	scores      []float32
	scoreIdx    int
	lastDetect  time.Time
}

func (s *detectState) reset() {
	s.melBuffer = s.melBuffer[:0]
	for i := range s.embedBuffer {
		s.embedBuffer[i] = 0
	}
	s.audioRem = s.audioRem[:0]
	for i := range s.scores {
		s.scores[i] = 0
	}
	s.scoreIdx = 0
}

// process pushes one audio frame through the full pipeline.
func (d *Detector) process(pipe *pipeline, st *detectState, frame []int16) {
	st.audioRem = append(st.audioRem, frame...)

	for len(st.audioRem) >= chunkSamples {
		chunk := st.audioRem[:chunkSamples]
		// Compact to release old backing memory.
		n := copy(st.audioRem, st.audioRem[chunkSamples:])
		st.audioRem = st.audioRem[:n]

		// Step 1: melspectrogram.
		inData := pipe.melIn.GetData()
		for i, v := range chunk {
			inData[i] = float32(v)
		}
		if err := pipe.melSess.Run(); err != nil {
			d.log.Error("wakeword: melspec run failed: %v", err)
			continue
		}
		melData := pipe.melOut.GetData()
		for f := 0; f < nMelFrames; f++ {
			for b := 0; b < melBins; b++ {
				idx := f*melBins + b
				if idx < len(melData) {
					st.melBuffer = append(st.melBuffer, melData[idx]/10.0+2.0)
				}
			}
		}

		// Step 2: embedding over a sliding mel window.
		newEmbed := false
		for len(st.melBuffer)/melBins >= melWindow {
			eData := pipe.embedIn.GetData()
			copy(eData, st.melBuffer[:melWindow*melBins])
			if err := pipe.embedSess.Run(); err != nil {
				d.log.Error("wakeword: embed run failed: %v", err)
				break
			}
			eOut := pipe.embedOut.GetData()

			// Sliding window: shift left, insert at end.
			copy(st.embedBuffer, st.embedBuffer[embeddingDim:])
			copy(st.embedBuffer[(nEmbedFrames-1)*embeddingDim:], eOut[:embeddingDim])
			newEmbed = true

			n := copy(st.melBuffer, st.melBuffer[melStep*melBins:])
			st.melBuffer = st.melBuffer[:n]
		}

		// Trim excess mel history.
		if total := len(st.melBuffer) / melBins; total > melWindow {
			excess := (total - melWindow) * melBins
			n := copy(st.melBuffer, st.melBuffer[excess:])
			st.melBuffer = st.melBuffer[:n]
		}

		if !newEmbed {
			continue
		}

		// Step 3: wakeword scoring over a zero-padded buffer. Only the
		// last recentEmbeds slots are real so stale context can't
		// suppress a fresh detection.
		wwData := pipe.wwIn.GetData()
		padSlots := nEmbedFrames - recentEmbeds
		for i := 0; i < padSlots*embeddingDim; i++ {
			wwData[i] = 0
		}
		copy(wwData[padSlots*embeddingDim:], st.embedBuffer[padSlots*embeddingDim:])
		if err := pipe.wwSess.Run(); err != nil {
			d.log.Error("wakeword: ww run failed: %v", err)
			continue
		}

		score := pipe.wwOut.GetData()[0]
		st.scores[st.scoreIdx%scoreWindow] = score
		st.scoreIdx++

		var maxScore float32
		for _, s := range st.scores {
			if s > maxScore {
				maxScore = s
			}
		}

		if float64(maxScore) >= d.cfg.Threshold*0.1 {
			d.log.Debug("wakeword: score=%.6f max=%.6f (threshold=%.2f)", score, maxScore, d.cfg.Threshold)
		}

		now := time.Now()
		if float64(maxScore) >= d.cfg.Threshold && now.Sub(st.lastDetect) > d.cfg.Cooldown {
			d.log.Info("wakeword: detected (score=%.4f, windowMax=%.4f)", score, maxScore)
			st.lastDetect = now
			for i := range st.scores {
				st.scores[i] = 0
			}
			if d.OnDetected != nil {
				d.OnDetected()
			}
		}
	}
}
