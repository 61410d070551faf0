// Command kmeter runs audio files through the K-meter pipeline.
//
// Usage:
//
//	kmeter validate [flags] FILE
//	kmeter timing [flags]
//
// Examples:
//
//	kmeter validate --peak --average take1.wav
//	kmeter validate --csv --channel 2 --crest-factor 20 -o report.csv take1.wav
//	kmeter timing --sample-rate 44100
package main

import (
	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"
)

// CLI defines the command-line interface.
type CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`

	Validate ValidateCmd `cmd:"" help:"Meter a WAV file and report the readings"`
	Timing   TimingCmd   `cmd:"" help:"Print the ballistics timing constants"`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("kmeter"),
		kong.Description("K-system level meter with file validation"),
		kong.UsageOnError(),
	)

	logger := logrus.New()
	if cli.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx.FatalIfErrorf(ctx.Run(logger))
}
