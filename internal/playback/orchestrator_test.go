package playback

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// fakeVoice is a scripted synthesizer. With autoDone set, every
// utterance completes synchronously; otherwise the test drives
// completion through finish().
type fakeVoice struct {
	mu         sync.Mutex
	autoDone   bool
	utterances []string
	done       func()
	paused     int
	resumed    int
	cancelled  int
}

func (f *fakeVoice) Speak(text string, done func()) {
	f.mu.Lock()
	f.utterances = append(f.utterances, text)
	if f.autoDone {
		f.mu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	f.done = done
	f.mu.Unlock()
}

func (f *fakeVoice) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused++
}

func (f *fakeVoice) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed++
}

func (f *fakeVoice) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	f.done = nil
}

func (f *fakeVoice) Supported() bool { return true }

// finish completes the pending utterance, as real audio would.
func (f *fakeVoice) finish() {
	f.mu.Lock()
	done := f.done
	f.done = nil
	f.mu.Unlock()
	if done != nil {
		done()
	}
}

func (f *fakeVoice) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.utterances))
	copy(out, f.utterances)
	return out
}

func (f *fakeVoice) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeVoice) resumeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumed
}

func spokeContaining(utterances []string, substr string) bool {
	for _, u := range utterances {
		if strings.Contains(u, substr) {
			return true
		}
	}
	return false
}

func testSteps() []domain.NormalizedStep {
	return []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Dice the onion.", RequiresUserAction: true},
		{ID: "step-2", Index: 1, Text: "Simmer for 2 minutes.", TimerSeconds: 120},
		{ID: "step-3", Index: 2, Text: "Serve hot.", RequiresUserAction: true},
	}
}

func newTestOrchestrator(voice *fakeVoice, steps []domain.NormalizedStep, opts ...Option) *Orchestrator {
	log := logger.New(logger.LevelOff, nil)
	base := []Option{
		WithAdvanceDelay(30 * time.Millisecond),
		// Frozen countdown unless a test opts into a fast one.
		WithCountdownInterval(1 * time.Hour),
	}
	return New(log, voice, "session-1", "recipe-1", steps, append(base, opts...)...)
}

func TestPlayNarratesCurrentStep(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps())

	o.Play()

	spoken := voice.spoken()
	if len(spoken) == 0 || !strings.HasPrefix(spoken[0], "Step 1. ") {
		t.Fatalf("first utterance = %v, want 'Step 1. ...'", spoken)
	}
	if o.Phase() != domain.PhaseIdle {
		t.Errorf("phase after narration without autoplay = %s, want idle", o.Phase())
	}
}

func TestPlaySpeaksSentenceBySentence(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Crack the eggs. Whisk well."},
	}
	o := newTestOrchestrator(voice, steps)

	o.Play()

	spoken := voice.spoken()
	if len(spoken) != 2 {
		t.Fatalf("got %d utterances, want 2: %v", len(spoken), spoken)
	}
	if spoken[1] != "Whisk well." {
		t.Errorf("second utterance = %q", spoken[1])
	}
}

func TestAutoPlayAdvancesAfterDelay(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Peel the carrots."},
		{ID: "step-2", Index: 1, Text: "Grate them."},
	}
	o := newTestOrchestrator(voice, steps, WithAutoPlay(true))

	o.Play()
	if o.Phase() != domain.PhaseAutoAdvancing {
		t.Fatalf("phase after narration = %s, want auto_advancing", o.Phase())
	}

	time.Sleep(100 * time.Millisecond)

	if got := o.CurrentStep().ID; got != "step-2" {
		t.Errorf("cursor after advance delay = %s, want step-2", got)
	}
	if !spokeContaining(voice.spoken(), "Step 2.") {
		t.Errorf("step 2 never narrated: %v", voice.spoken())
	}
}

func TestPauseCancelsScheduledAdvance(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Peel the carrots."},
		{ID: "step-2", Index: 1, Text: "Grate them."},
	}
	o := newTestOrchestrator(voice, steps, WithAutoPlay(true))

	o.Play()
	o.Pause()
	time.Sleep(100 * time.Millisecond)

	if got := o.CurrentStep().ID; got != "step-1" {
		t.Errorf("cursor moved after Pause: %s", got)
	}
	if spokeContaining(voice.spoken(), "Step 2.") {
		t.Error("step 2 narrated despite Pause")
	}
}

func TestPauseResumeContinuesSentenceQueue(t *testing.T) {
	voice := &fakeVoice{} // manual completion: narration stays in flight
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Crack the eggs. Whisk well."},
	}
	o := newTestOrchestrator(voice, steps)

	o.Play()
	o.Pause()
	if voice.pauseCount() != 1 {
		t.Fatalf("voice paused %d times, want 1", voice.pauseCount())
	}

	o.Dispatch(domain.Command{Type: domain.CommandResumeSpeech})
	if voice.resumeCount() != 1 {
		t.Fatalf("voice resumed %d times, want 1", voice.resumeCount())
	}

	// The first sentence finishes after the resume; the queue must
	// carry on with the second.
	voice.finish()
	if !spokeContaining(voice.spoken(), "Whisk well.") {
		t.Fatalf("second sentence never spoken after pause/resume: %v", voice.spoken())
	}

	// Finishing the last sentence completes the step's narration.
	voice.finish()
	if o.Phase() != domain.PhaseIdle {
		t.Errorf("phase after narration = %s, want idle", o.Phase())
	}
}

func TestNavigationInvalidatesScheduledAdvance(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps(), WithAutoPlay(true))

	o.Play() // step 1 is untimed: schedules an advance
	o.Next() // user beats the delay; step 2 waits on its frozen countdown

	time.Sleep(100 * time.Millisecond)

	// The stale scheduled advance must not fire a second Next.
	if got := o.CurrentStep().ID; got != "step-2" {
		t.Errorf("cursor = %s, want step-2", got)
	}
	if o.Phase() != domain.PhaseTimerWaiting {
		t.Errorf("phase = %s, want timer_waiting", o.Phase())
	}
}

func TestTimedStepStartsCountdownAndAdvancesOnFire(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Simmer briefly.", TimerSeconds: 2},
		{ID: "step-2", Index: 1, Text: "Serve hot."},
	}
	o := newTestOrchestrator(voice, steps,
		WithAutoPlay(true),
		WithCountdownInterval(5*time.Millisecond),
	)

	o.Play()
	time.Sleep(100 * time.Millisecond)

	if !spokeContaining(voice.spoken(), "Time's up") {
		t.Errorf("countdown fire never announced: %v", voice.spoken())
	}
	if got := o.CurrentStep().ID; got != "step-2" {
		t.Errorf("cursor after countdown fire = %s, want step-2", got)
	}
}

func TestCountdownFireWithoutAutoPlayAnnouncesOnly(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Simmer briefly.", TimerSeconds: 2},
		{ID: "step-2", Index: 1, Text: "Serve hot."},
	}
	o := newTestOrchestrator(voice, steps, WithCountdownInterval(5*time.Millisecond))

	o.Play()
	time.Sleep(100 * time.Millisecond)

	if !spokeContaining(voice.spoken(), "Time's up") {
		t.Errorf("countdown fire never announced: %v", voice.spoken())
	}
	if got := o.CurrentStep().ID; got != "step-1" {
		t.Errorf("cursor moved without autoplay: %s", got)
	}
}

func TestNavigationKeepsCountdownButClearsAdvance(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Simmer briefly.", TimerSeconds: 3},
		{ID: "step-2", Index: 1, Text: "Stir the pot."},
		{ID: "step-3", Index: 2, Text: "Serve hot."},
	}
	o := newTestOrchestrator(voice, steps,
		WithAutoPlay(true),
		WithAdvanceDelay(10*time.Second), // step 2's own advance never fires in-test
		WithCountdownInterval(5*time.Millisecond),
	)

	o.Play() // narration done, countdown running, advance riding on fire
	o.Next() // user moves on while the countdown runs

	if got := o.TimerSnapshot(); !got.IsRunning {
		t.Fatal("countdown stopped by navigation; it should keep running")
	}

	time.Sleep(100 * time.Millisecond)

	if !spokeContaining(voice.spoken(), "Time's up") {
		t.Errorf("countdown fire never announced: %v", voice.spoken())
	}
	// Fire is announcement-only after navigation.
	if got := o.CurrentStep().ID; got != "step-2" {
		t.Errorf("cursor after fire = %s, want step-2", got)
	}
}

func TestListeningInterruptionPausesAndResumes(t *testing.T) {
	voice := &fakeVoice{} // manual completion: narration stays in flight
	o := newTestOrchestrator(voice, testSteps())

	o.Play()
	o.OnVoiceListeningStart()

	if voice.pauseCount() != 1 {
		t.Fatalf("voice paused %d times, want 1", voice.pauseCount())
	}
	if o.Phase() != domain.PhasePausedByListening {
		t.Fatalf("phase = %s, want paused_by_listening", o.Phase())
	}

	o.OnVoiceListeningEnd(nil)

	if voice.resumeCount() != 1 {
		t.Errorf("voice resumed %d times, want 1", voice.resumeCount())
	}
	if o.Phase() != domain.PhaseSpeaking {
		t.Errorf("phase after empty listening window = %s, want speaking", o.Phase())
	}
}

func TestListeningEndWithCommandDoesNotResume(t *testing.T) {
	voice := &fakeVoice{}
	o := newTestOrchestrator(voice, testSteps())

	o.Play()
	o.OnVoiceListeningStart()
	o.OnVoiceListeningEnd(&domain.Command{Type: domain.CommandNext})

	if voice.resumeCount() != 0 {
		t.Error("narration resumed despite a state-altering command")
	}
	if got := o.CurrentStep().ID; got != "step-2" {
		t.Errorf("cursor = %s, want step-2", got)
	}
}

func TestListeningEndTimerCommandRestoresPhase(t *testing.T) {
	voice := &fakeVoice{}
	o := newTestOrchestrator(voice, testSteps())

	o.Play()
	o.OnVoiceListeningStart()
	o.OnVoiceListeningEnd(&domain.Command{Type: domain.CommandPauseTimer})

	// Timer controls don't renarrate, so the session must leave the
	// listening phase on its own. Speech stays paused.
	if got := o.Phase(); got != domain.PhaseSpeaking {
		t.Errorf("phase = %s, want speaking", got)
	}
	if voice.resumeCount() != 0 {
		t.Error("narration resumed despite a state-altering command")
	}
}

func TestListeningEndUnknownResumesLikeEmpty(t *testing.T) {
	voice := &fakeVoice{}
	o := newTestOrchestrator(voice, testSteps())

	o.Play()
	o.OnVoiceListeningStart()
	o.OnVoiceListeningEnd(&domain.Command{Type: domain.CommandUnknown})

	if voice.resumeCount() != 1 {
		t.Error("unknown command should resume narration like an empty window")
	}
}

func TestInterruptionDuringIdleDoesNotResume(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps())

	o.Play() // completes immediately, back to idle
	o.OnVoiceListeningStart()
	o.OnVoiceListeningEnd(nil)

	if voice.resumeCount() != 0 {
		t.Error("nothing was playing; resume must not fire")
	}
	if o.Phase() != domain.PhaseIdle {
		t.Errorf("phase = %s, want idle", o.Phase())
	}
}

func TestDispatchStartTimerFallsBackToStepDuration(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps())

	o.GoTo(1) // timed step, 120s
	o.Dispatch(domain.Command{Type: domain.CommandStartTimer})

	snap := o.TimerSnapshot()
	if !snap.IsRunning || snap.RemainingSeconds != 120 {
		t.Errorf("timer snapshot = %+v, want running at 120s", snap)
	}
}

func TestDispatchStartTimerExplicitDuration(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps())

	o.Dispatch(domain.Command{Type: domain.CommandStartTimer, Minutes: 5})

	snap := o.TimerSnapshot()
	if !snap.IsRunning || snap.RemainingSeconds != 300 {
		t.Errorf("timer snapshot = %+v, want running at 300s", snap)
	}
}

func TestDispatchStartTimerNoDurationAnnounces(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps())

	// Step 1 has no extracted duration.
	o.Dispatch(domain.Command{Type: domain.CommandStartTimer})

	if o.TimerSnapshot().IsRunning {
		t.Error("timer started with no duration available")
	}
	if !spokeContaining(voice.spoken(), "no timer duration") {
		t.Errorf("missing announcement: %v", voice.spoken())
	}
}

func TestDispatchTimerControls(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps())

	o.Dispatch(domain.Command{Type: domain.CommandStartTimer, Minutes: 2})
	o.Dispatch(domain.Command{Type: domain.CommandPauseTimer})
	if snap := o.TimerSnapshot(); !snap.IsPaused {
		t.Fatalf("timer not paused: %+v", snap)
	}

	o.Dispatch(domain.Command{Type: domain.CommandResumeTimer})
	if snap := o.TimerSnapshot(); snap.IsPaused {
		t.Fatalf("timer still paused: %+v", snap)
	}

	o.Dispatch(domain.Command{Type: domain.CommandResetTimer})
	if snap := o.TimerSnapshot(); !snap.IsRunning || snap.RemainingSeconds != 120 {
		t.Errorf("timer after reset = %+v, want running at 120s", snap)
	}
}

func TestNextPastLastStepCompletes(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps())

	o.GoTo(2)
	o.Next()

	if o.Phase() != domain.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", o.Phase())
	}
	if got := o.CurrentStep().ID; got != "step-3" {
		t.Errorf("cursor moved past the last step: %s", got)
	}
	if !spokeContaining(voice.spoken(), "last step") {
		t.Errorf("completion never announced: %v", voice.spoken())
	}

	// Completed is not terminal: the cook can go back.
	o.Previous()
	if o.Phase() == domain.PhaseCompleted {
		t.Error("Previous should leave the completed phase")
	}
}

func TestAutoPlaySessionEndsOnFinalTimedStep(t *testing.T) {
	voice := &fakeVoice{autoDone: true}
	steps := []domain.NormalizedStep{
		{ID: "step-1", Index: 0, Text: "Dice the onion."},
		{ID: "step-2", Index: 1, Text: "Add everything to the pot."},
		{ID: "step-3", Index: 2, Text: "Simmer for 2 seconds.", TimerSeconds: 2},
	}
	o := newTestOrchestrator(voice, steps,
		WithAutoPlay(true),
		WithAdvanceDelay(10*time.Millisecond),
		WithCountdownInterval(5*time.Millisecond),
	)

	o.Play()
	time.Sleep(150 * time.Millisecond)

	// Steps 1 and 2 advance on the delay; step 3 waits on its countdown
	// and completes the session when it fires.
	if o.Phase() != domain.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", o.Phase())
	}
	if !spokeContaining(voice.spoken(), "last step") {
		t.Errorf("completion never announced: %v", voice.spoken())
	}
	snap := o.Snapshot()
	if len(snap.CompletedSteps) != 3 {
		t.Errorf("completed steps = %v, want all three", snap.CompletedSteps)
	}
}

func TestSnapshotRecordsProgress(t *testing.T) {
	var mu sync.Mutex
	var last domain.SessionSnapshot
	voice := &fakeVoice{autoDone: true}
	o := newTestOrchestrator(voice, testSteps(), WithSnapshotFunc(func(s domain.SessionSnapshot) {
		mu.Lock()
		last = s
		mu.Unlock()
	}))

	o.Play()
	o.Next()

	mu.Lock()
	defer mu.Unlock()
	if last.SessionKey != "session-1" || last.RecipeID != "recipe-1" {
		t.Errorf("snapshot identity = %+v", last)
	}
	if last.StepIndex != 1 {
		t.Errorf("snapshot step index = %d, want 1", last.StepIndex)
	}
	if len(last.CompletedSteps) != 1 || last.CompletedSteps[0] != 0 {
		t.Errorf("snapshot completed steps = %v, want [0]", last.CompletedSteps)
	}
}

func TestGenericPausePausesSpeechNotTimer(t *testing.T) {
	voice := &fakeVoice{}
	o := newTestOrchestrator(voice, testSteps())

	o.Dispatch(domain.Command{Type: domain.CommandStartTimer, Minutes: 2})
	o.Play()
	o.Dispatch(domain.Command{Type: domain.CommandGenericPause})

	if voice.pauseCount() != 1 {
		t.Errorf("voice paused %d times, want 1", voice.pauseCount())
	}
	if snap := o.TimerSnapshot(); snap.IsPaused || !snap.IsRunning {
		t.Errorf("generic pause touched the timer: %+v", snap)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Crack the eggs. Whisk well.", 2},
		{"Stir until combined", 1},
		{"Boil. Drain. Serve.", 3},
		{"Ready? Go!", 2},
	}
	for _, tt := range tests {
		if got := splitSentences(tt.text); len(got) != tt.want {
			t.Errorf("splitSentences(%q) = %v, want %d parts", tt.text, got, tt.want)
		}
	}
}
