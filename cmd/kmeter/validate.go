package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-kmeter/dsp/buffer"
	"github.com/cwbudde/algo-kmeter/dsp/core"
	"github.com/cwbudde/algo-kmeter/dsp/dither"
	"github.com/cwbudde/algo-kmeter/measure/metering"
)

// ValidateCmd plays a file through the meters as the host would.
type ValidateCmd struct {
	File string `arg:"" type:"existingfile" help:"WAV file to validate"`

	Channel       int    `default:"0" help:"Report only this channel (1-based, 0 = all)"`
	CSV           bool   `name:"csv" help:"Write comma-separated values"`
	Average       bool   `help:"Report the moving average of the RMS level"`
	Peak          bool   `help:"Report peak and peak hold levels"`
	AverageChunks int    `default:"10" help:"Chunks covered by the RMS average"`
	CrestFactor   int    `default:"0" help:"Crest factor in dB (20 for K-20)"`
	Transient     bool   `help:"Use transient ballistics"`
	Gain          int    `default:"0" help:"Gain in dB, applied with --mix (-60 to 60)"`
	Mix           bool   `help:"Apply gain and dither before metering"`
	BitDepth      int    `default:"24" help:"Dither target bit depth"`
	Dither        string `default:"triangular" enum:"none,rectangular,triangular,gaussian" help:"Dither noise (${enum})"`
	NoiseShaping  string `default:"efb" enum:"none,efb,2sc,3fc,9fc" help:"Dither noise shaping (${enum})"`
	Limit         bool   `help:"Clip the mixed signal to the bit depth"`
	SampleRate    int    `default:"0" help:"Meter at this rate, resampling the file (0 = file rate)"`
	ChunkSize     int    `default:"1024" help:"Analysis chunk size in samples"`
	BlockSize     int    `default:"512" help:"Host block size in samples"`
	Output        string `short:"o" type:"path" help:"Write the report to this file instead of stdout"`
}

// Run validates the file, writing the report and summary to stdout.
func (c *ValidateCmd) Run(logger *logrus.Logger) error {
	return c.run(logger, os.Stdout)
}

func (c *ValidateCmd) run(logger *logrus.Logger, stdout io.Writer) error {
	log := logger.WithFields(logrus.Fields{
		"function": "ValidateCmd.Run",
		"file":     c.File,
	})

	player, format, err := metering.OpenFilePlayer(c.File, c.SampleRate, c.BlockSize)
	if err != nil {
		return err
	}
	defer player.Close()

	ditherType, err := dither.ParseDitherType(c.Dither)
	if err != nil {
		return err
	}

	shaping, err := dither.ParsePreset(c.NoiseShaping)
	if err != nil {
		return err
	}

	rate := c.SampleRate
	if rate <= 0 {
		rate = int(format.SampleRate)
	}

	pc := core.ApplyProcessorOptions(
		core.WithSampleRate(float64(rate)),
		core.WithChannels(format.NumChannels),
		core.WithChunkSize(c.ChunkSize),
		core.WithBlockSize(c.BlockSize),
	)

	pipeline, err := metering.NewPipeline(
		metering.WithProcessorConfig(pc),
		metering.WithSampleRate(pc.SampleRate),
		metering.WithCrestFactor(c.CrestFactor),
		metering.WithTransientMode(c.Transient),
		metering.WithGain(c.Gain),
		metering.WithMixMode(c.Mix),
		metering.WithBitDepth(c.BitDepth),
		metering.WithDitherType(ditherType),
		metering.WithNoiseShaping(shaping),
		metering.WithDitherLimit(c.Limit),
		metering.WithLogger(log),
	)
	if errors.Is(err, metering.ErrInvalidSampleRate) {
		return fmt.Errorf("%w (use --sample-rate to resample)", err)
	}
	if err != nil {
		return err
	}
	defer pipeline.Stop()

	report, summary, closeReport, err := c.outputs(stdout)
	if err != nil {
		return err
	}
	defer closeReport()

	reporter, err := metering.NewReporter(report,
		metering.WithReportChannel(c.Channel-1),
		metering.WithCSV(c.CSV),
		metering.WithAverageLevel(c.Average),
		metering.WithPeakLevel(c.Peak),
		metering.WithAverageChunks(c.AverageChunks),
	)
	if err != nil {
		return err
	}

	if err := pipeline.StartValidation(player, reporter); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"sample_rate": rate,
		"file_rate":   int(format.SampleRate),
		"channels":    format.NumChannels,
	}).Info("Validating file")

	pool := buffer.NewPool()
	for pipeline.IsValidating() {
		block := pool.Get(format.NumChannels, c.BlockSize)
		pipeline.Process(block.Data())
		pool.Put(block)
		pipeline.Drain()
	}

	if err := player.Err(); err != nil {
		return fmt.Errorf("decoding %s: %w", c.File, err)
	}

	if err := pipeline.ReportErr(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	log.WithFields(logrus.Fields{
		"frames":  player.Frames(),
		"dropped": pipeline.Dropped(),
	}).Debug("Validation finished")

	return printSummary(summary, pipeline)
}

// outputs picks the report and summary writers. A CSV report on stdout
// moves the summary to stderr so the CSV stays parseable.
func (c *ValidateCmd) outputs(stdout io.Writer) (report, summary io.Writer, closeFn func(), err error) {
	if c.Output == "" {
		summary = stdout
		if c.CSV {
			summary = os.Stderr
		}

		return stdout, summary, func() {}, nil
	}

	file, err := os.Create(c.Output)
	if err != nil {
		return nil, nil, nil, err
	}

	return file, stdout, func() { file.Close() }, nil
}

func printSummary(w io.Writer, pipeline *metering.Pipeline) error {
	snap := pipeline.Snapshot()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\nChannel\tPeak [dB]\tHold [dB]\tRMS [dB]\tOverflows\n")
	fmt.Fprintf(tw, "-------\t---------\t---------\t--------\t---------\n")

	for ch, st := range snap.Channels {
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t%d\n", ch+1, st.PeakDB, st.PeakHoldDB, st.RmsDB, st.Overflows)
	}

	return tw.Flush()
}
