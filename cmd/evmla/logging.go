package main

import (
	"io"
	"os"

	evmlog "github.com/ethereal-ir/evmla/log"
	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// setupLogging installs the root logger: the rotating file sink when a log
// file is configured, the terminal otherwise. The returned function flushes
// the sink.
func setupLogging(cfg logConfig) (func(), error) {
	level := log.FromLegacyLevel(cfg.Verbosity)
	if cfg.File != "" {
		w, err := evmlog.NewAsyncFileWriter(cfg.File, cfg.MaxSize, cfg.Keep, 0)
		if err != nil {
			return nil, err
		}
		if err := w.Start(); err != nil {
			return nil, err
		}
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, false)))
		return w.Stop, nil
	}
	var (
		output   io.Writer = os.Stderr
		useColor           = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	)
	if useColor {
		output = colorable.NewColorableStderr()
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(output, level, useColor)))
	return func() {}, nil
}
