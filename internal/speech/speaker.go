// Package speech provides text-to-speech synthesis and playback for
// step narration.
package speech

import (
	"context"
	"sync"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Compile-time interface check.
var _ domain.Synthesizer = (*Speaker)(nil)

// SpeakerOption configures the Speaker.
type SpeakerOption func(*Speaker)

// WithCacheDir enables the on-disk audio cache tier.
func WithCacheDir(dir string) SpeakerOption {
	return func(s *Speaker) {
		s.cacheDir = dir
	}
}

// Speaker synthesizes and plays one utterance at a time. A new Speak
// cancels whatever was playing; the cancelled utterance's done callback
// never fires. Synthesis failures are logged and count as completion so
// the caller's narration chain keeps moving.
type Speaker struct {
	tts    *AzureClient
	player *Player
	cache  *AudioCache
	log    *logger.Logger

	cacheDir string

	mu  sync.Mutex
	gen int // bumped on every Speak/Cancel to orphan stale utterances
}

// NewSpeaker creates a speaker over the given TTS client and player.
func NewSpeaker(tts *AzureClient, player *Player, log *logger.Logger, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		tts:    tts,
		player: player,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = NewAudioCache(tts.Voice(), s.cacheDir, log)
	return s
}

// Speak synthesizes the text and plays it, invoking done when playback
// finishes naturally. Any utterance already in flight is cancelled.
func (s *Speaker) Speak(text string, done func()) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.player.Stop()

	go func() {
		audio, err := s.synthesize(text)

		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if stale {
			return
		}

		if err != nil {
			s.log.Error("speaker: synthesis failed: %v", err)
			if done != nil {
				done()
			}
			return
		}

		finished, err := s.player.Play(audio)
		if err != nil {
			s.log.Error("speaker: playback failed: %v", err)
			finished = true // treat as completed so narration moves on
		}

		s.mu.Lock()
		stale = gen != s.gen
		s.mu.Unlock()

		if finished && !stale && done != nil {
			done()
		}
	}()
}

// Pause freezes playback mid-utterance.
func (s *Speaker) Pause() {
	s.player.Pause()
}

// Resume continues a paused utterance.
func (s *Speaker) Resume() {
	s.player.Resume()
}

// Cancel stops the in-flight utterance. Its done callback never fires.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.player.Stop()
}

// Supported reports that audio output is available.
func (s *Speaker) Supported() bool { return true }

// Prefetch pre-synthesizes texts into the cache in the background so
// playback starts instantly when they are spoken. Skips cached texts.
func (s *Speaker) Prefetch(ctx context.Context, texts ...string) {
	for _, text := range texts {
		if text == "" || s.cache.Has(text) {
			continue
		}
		go func(t string) {
			audio, err := s.tts.Synthesize(ctx, t)
			if err != nil {
				s.log.Error("prefetch: synthesis failed: %v", err)
				return
			}
			s.cache.Put(t, audio)
			s.log.Debug("prefetch: cached %d bytes for: %s", len(audio), truncate(t, 50))
		}(text)
	}
}

// Cache returns the audio cache, for stats logging.
func (s *Speaker) Cache() *AudioCache { return s.cache }

func (s *Speaker) synthesize(text string) ([]byte, error) {
	if audio, ok := s.cache.Get(text); ok {
		return audio, nil
	}
	audio, err := s.tts.Synthesize(context.Background(), text)
	if err != nil {
		return nil, err
	}
	s.cache.Put(text, audio)
	return audio, nil
}
