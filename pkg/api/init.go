package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/cloudrecess/xiansim/pkg/sim"
	"github.com/cloudrecess/xiansim/pkg/worldgen"
)

// InitStatus is the initialization state machine's coarse state.
type InitStatus string

// Initialization states. idle → pending → in_progress → ready | error.
const (
	InitIdle       InitStatus = "idle"
	InitPending    InitStatus = "pending"
	InitInProgress InitStatus = "in_progress"
	InitReady      InitStatus = "ready"
	InitError      InitStatus = "error"
)

// ErrInitRunning rejects a second initialization while one is underway.
var ErrInitRunning = errors.New("initialization already running")

// phaseProgress maps a build phase to its reported completion percentage.
var phaseProgress = map[int]int{
	worldgen.PhaseScanningAssets:          0,
	worldgen.PhaseLoadingMap:              10,
	worldgen.PhaseProcessingHistory:       25,
	worldgen.PhaseInitializingSects:       40,
	worldgen.PhaseGeneratingAvatars:       55,
	worldgen.PhaseCheckingLLM:             70,
	worldgen.PhaseGeneratingInitialEvents: 85,
}

const progressDone = 100

// BuildFunc produces a simulator, reporting phase transitions through
// onPhase. Tests substitute their own.
type BuildFunc func(ctx context.Context, onPhase func(int)) (*sim.Simulator, error)

// Initializer runs world generation in the background and exposes its
// progress to polling clients.
type Initializer struct {
	build BuildFunc

	mu      sync.Mutex
	status  InitStatus
	phase   int
	lastErr string
	result  *sim.Simulator
}

// NewInitializer wraps a build function in the idle state.
func NewInitializer(build BuildFunc) *Initializer {
	return &Initializer{build: build, status: InitIdle}
}

// Start launches initialization. It returns ErrInitRunning when a build is
// already pending or in progress; a finished (ready or failed) initializer
// may be started again.
func (in *Initializer) Start(ctx context.Context, onReady func(*sim.Simulator)) error {
	in.mu.Lock()
	if in.status == InitPending || in.status == InitInProgress {
		in.mu.Unlock()
		return ErrInitRunning
	}
	in.status = InitPending
	in.phase = 0
	in.lastErr = ""
	in.result = nil
	in.mu.Unlock()

	go func() {
		s, err := in.build(ctx, func(phase int) {
			in.mu.Lock()
			in.status = InitInProgress
			in.phase = phase
			in.mu.Unlock()
		})

		in.mu.Lock()
		defer in.mu.Unlock()
		if err != nil {
			slog.Error("initialization failed", "error", err)
			in.status = InitError
			in.lastErr = err.Error()
			return
		}
		in.status = InitReady
		in.result = s
		if onReady != nil {
			onReady(s)
		}
	}()
	return nil
}

// InitState is the status payload reported to clients.
type InitState struct {
	Status    InitStatus `json:"status"`
	Phase     int        `json:"phase"`
	PhaseName string     `json:"phase_name"`
	Progress  int        `json:"progress"`
	Error     string     `json:"error,omitempty"`
}

// State snapshots the current progress.
func (in *Initializer) State() InitState {
	in.mu.Lock()
	defer in.mu.Unlock()

	st := InitState{
		Status:    in.status,
		Phase:     in.phase,
		PhaseName: worldgen.PhaseName(in.phase),
		Error:     in.lastErr,
	}
	switch in.status {
	case InitReady:
		st.Progress = progressDone
	case InitInProgress, InitError:
		st.Progress = phaseProgress[in.phase]
	}
	return st
}

// Ready reports whether a simulator is available.
func (in *Initializer) Ready() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.status == InitReady
}
