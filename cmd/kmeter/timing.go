package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/algo-kmeter/dsp/core"
	"github.com/cwbudde/algo-kmeter/measure/ballistics"
)

// TimingCmd prints the timing constants of both ballistics modes.
type TimingCmd struct {
	SampleRate float64 `default:"48000" help:"Sample rate in Hz for the chunk duration"`
	ChunkSize  int     `default:"1024" help:"Analysis chunk size in samples"`
}

// Run prints the table to stdout.
func (c *TimingCmd) Run() error {
	return c.print(os.Stdout)
}

func (c *TimingCmd) print(w io.Writer) error {
	cfg := core.ApplyProcessorOptions(
		core.WithSampleRate(c.SampleRate),
		core.WithChunkSize(c.ChunkSize),
	)
	if err := cfg.Validate(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Mode\tPeak fall [dB/s]\tHold [s]\tHold fall [dB/s]\tRMS attack\tRMS release\tFall/chunk [dB]\n")
	fmt.Fprintf(tw, "----\t----------------\t--------\t----------------\t----------\t-----------\t---------------\n")

	modes := []struct {
		name   string
		timing ballistics.Timing
	}{
		{"normal", ballistics.NormalTiming()},
		{"transient", ballistics.TransientTiming()},
	}
	for _, m := range modes {
		fmt.Fprintf(tw, "%s\t%.4f\t%.1f\t%.4f\t%s\t%s\t%.4f\n",
			m.name,
			m.timing.PeakFallRate,
			m.timing.PeakHoldTime.Seconds(),
			m.timing.HoldFallRate,
			m.timing.RmsAttack,
			m.timing.RmsRelease,
			m.timing.PeakFallRate*cfg.ChunkSeconds(),
		)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nchunk: %d samples = %.1f ms at %.0f Hz\n",
		cfg.ChunkSize, 1000*cfg.ChunkSeconds(), cfg.SampleRate)

	return err
}
