package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/config"
	"pipelined.dev/radio/log"
	"pipelined.dev/radio/loop"
	"pipelined.dev/radio/metric"
	"pipelined.dev/radio/stream"
	"pipelined.dev/radio/wav"
)

type syncCommand struct {
	flags      *flag.FlagSet
	configPath string
	cfg        config.Config
}

func (cmd *syncCommand) Name() string {
	return "sync"
}

func (cmd *syncCommand) Help() string {
	return "Recover carrier of the input file and save the result"
}

func (cmd *syncCommand) Register(fs *flag.FlagSet) {
	d := config.Default()
	cmd.flags = fs
	fs.StringVarP(&cmd.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVarP(&cmd.cfg.Input, "in", "i", "", "input IQ WAV file (required)")
	fs.StringVarP(&cmd.cfg.Output, "out", "o", "", "output IQ WAV file (required)")
	fs.IntVar(&cmd.cfg.BufferSize, "buffer-size", d.BufferSize, "samples per buffer")
	fs.StringVar(&cmd.cfg.Loop.Kind, "loop", d.Loop.Kind, "loop kind: costas, pll or carrier")
	fs.IntVar(&cmd.cfg.Loop.Order, "order", d.Loop.Order, "costas loop order: 2, 4 or 8")
	fs.Float32Var(&cmd.cfg.Loop.Bandwidth, "bandwidth", d.Loop.Bandwidth, "loop bandwidth in radians per sample")
	fs.BoolVarP(&cmd.cfg.Debug, "debug", "d", false, "enable debug logging")
}

// config returns file configuration overridden by flags set explicitly.
func (cmd *syncCommand) config() (config.Config, error) {
	if cmd.configPath == "" {
		return cmd.cfg, nil
	}
	c, err := config.Load(cmd.configPath)
	if err != nil {
		return c, err
	}
	overrides := map[string]func(){
		"in":          func() { c.Input = cmd.cfg.Input },
		"out":         func() { c.Output = cmd.cfg.Output },
		"buffer-size": func() { c.BufferSize = cmd.cfg.BufferSize },
		"loop":        func() { c.Loop.Kind = cmd.cfg.Loop.Kind },
		"order":       func() { c.Loop.Order = cmd.cfg.Loop.Order },
		"bandwidth":   func() { c.Loop.Bandwidth = cmd.cfg.Loop.Bandwidth },
		"debug":       func() { c.Debug = cmd.cfg.Debug },
	}
	for name, apply := range overrides {
		if cmd.flags.Changed(name) {
			apply()
		}
	}
	return c, nil
}

func (cmd *syncCommand) Run(ctx context.Context) error {
	c, err := cmd.config()
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	logger := log.GetLogger()
	if c.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.Debugf("effective config:\n%s", spew.Sdump(c))

	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := newPipeline(c, logger)
	if err != nil {
		return err
	}
	return p.run(ctx)
}

// pipeline reads the input file, passes it through the loop and writes
// the result.
type pipeline struct {
	logger *logrus.Logger
	hier   block.Hier
	source *wav.Source
	sink   *wav.Sink
	blocks []stage
}

// stage is a block of the pipeline.
type stage interface {
	block.Lifecycle
	ID() string
	Name() string
}

func newPipeline(c config.Config, logger *logrus.Logger) (*pipeline, error) {
	options := []block.Option{
		block.WithLogger(logger),
		block.WithBufferSize(c.BufferSize),
	}
	source, err := wav.NewSource(c.Input, append(options, block.WithName("source"))...)
	if err != nil {
		return nil, err
	}

	options = append(options, block.WithSampleRate(source.SampleRate()))
	var (
		recovery stage
		out      *stream.Stream[complex64]
	)
	switch c.Loop.Kind {
	case config.Costas:
		l := loop.NewCostas(source.Out, loop.Order(c.Loop.Order), c.Loop.Bandwidth, append(options, block.WithName("costas"))...)
		recovery, out = l, l.Out
	case config.PLL:
		l := loop.NewPLL(source.Out, c.Loop.Bandwidth, append(options, block.WithName("pll"))...)
		recovery, out = l, l.Out
	case config.Carrier:
		l := loop.NewCarrierTrackingPLL[complex64](source.Out, c.Loop.Bandwidth, append(options, block.WithName("carrier"))...)
		recovery, out = l, l.Out
	default:
		return nil, errors.Join(
			fmt.Errorf("%w: unknown loop kind: %q", config.ErrInvalidConfig, c.Loop.Kind),
			source.Close(),
		)
	}

	sink, err := wav.NewSink(c.Output, source.SampleRate(), out, append(options, block.WithName("sink"))...)
	if err != nil {
		return nil, errors.Join(err, source.Close())
	}

	p := &pipeline{
		logger: logger,
		source: source,
		sink:   sink,
		blocks: []stage{source, recovery, sink},
	}
	p.hier.Register(source, recovery, sink)
	return p, nil
}

// run processes the whole input file unless the context is done first.
func (p *pipeline) run(ctx context.Context) error {
	p.hier.Start()
	var err error
	select {
	case <-p.source.EOF():
		err = p.sink.WaitSamples(ctx, p.source.Samples())
	case <-ctx.Done():
		err = ctx.Err()
	}
	p.hier.Stop()
	err = errors.Join(err, p.source.Close(), p.sink.Close())

	for _, b := range p.blocks {
		p.logger.WithFields(metricFields(metric.Get(b.ID()))).Info("done")
	}
	p.logger.WithField("samples", p.sink.Samples()).Info("written")
	return err
}

func metricFields(counters map[string]string) logrus.Fields {
	fields := logrus.Fields{}
	for k, v := range counters {
		fields[k] = v
	}
	return fields
}
