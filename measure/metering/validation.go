package metering

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// StartValidation plays player through the meters and writes every
// published snapshot to reporter, which may be nil. Any running
// validation is replaced. The meters are reset first.
func (p *Pipeline) StartValidation(player *FilePlayer, reporter *Reporter) error {
	if player == nil {
		return fmt.Errorf("metering: validation needs a file player")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.player = player
	p.reporter = reporter
	p.reportErr = nil
	p.validStart = p.drained * uint64(p.cfg.ChunkSize)

	if reporter != nil {
		reporter.Reset()
	}

	p.resetLocked()
	p.playerSlot = &sourceSlot{src: player}
	p.source.Store(p.playerSlot)
	p.emit(EventValidationStarted)

	p.log.WithFields(logrus.Fields{
		"function":  "Pipeline.StartValidation",
		"reporting": reporter != nil,
	}).Info("Validation started")

	return nil
}

// StopValidation restores live input. It is a no-op when no validation
// is running.
func (p *Pipeline) StopValidation() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopValidationLocked()
}

func (p *Pipeline) stopValidationLocked() {
	if p.player == nil {
		return
	}

	p.source.Store(&sourceSlot{src: p.live})
	p.player = nil
	p.playerSlot = nil
	p.reporter = nil
	p.emit(EventValidationStopped)

	p.log.WithFields(logrus.Fields{
		"function": "Pipeline.StopValidation",
	}).Info("Validation stopped")
}

// IsValidating reports whether a validation is running. Once the file
// has played out and the chunk holding its last sample has been drained,
// the validation is stopped here. Until then the player feeds silence,
// so the caller keeps processing blocks.
func (p *Pipeline) IsValidating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil {
		return false
	}

	if p.player.Playing() || !p.tailDrainedLocked() {
		return true
	}

	p.stopValidationLocked()

	return false
}

// tailDrainedLocked reports whether the last drained chunk window, which
// trails its boundary by half a chunk, reaches past the end of the file.
func (p *Pipeline) tailDrainedLocked() bool {
	if p.stopped.Load() || !p.playerSlot.started.Load() {
		return true
	}

	chunkSize := uint64(p.cfg.ChunkSize)
	end := p.playerSlot.origin.Load() + p.player.Frames()

	return p.drained*chunkSize >= end+chunkSize/2
}

// ReportErr returns the first error the validation reporter hit.
func (p *Pipeline) ReportErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.reportErr
}
