package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/ethereal"
	"github.com/ethereal-ir/evmla/core/solc"
	"github.com/ethereal-ir/evmla/params"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type compilerConfig struct {
	LanguageVersion string
	Optimizer       string // backend mode: 0-3, s or z; empty optimises for cycles
	Order           string // declaration or topological
	MetadataHash    bool
	Threads         int
	Debug           bool
}

type logConfig struct {
	Verbosity int
	File      string
	MaxSize   int // megabytes
	Keep      int
}

type evmlaConfig struct {
	Compiler compilerConfig
	Log      logConfig
}

func defaultConfig() evmlaConfig {
	return evmlaConfig{
		Compiler: compilerConfig{
			LanguageVersion: params.DefaultLanguageVersion.String(),
			Order:           ethereal.DeclarationOrder.String(),
		},
		Log: logConfig{
			Verbosity: 3,
			MaxSize:   64,
			Keep:      3,
		},
	}
}

func loadConfig(file string, cfg *evmlaConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the config file, if any, and applies the flags that were
// set on top of it.
func makeConfig(ctx *cli.Context) (evmlaConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet(languageVersionFlag.Name) {
		cfg.Compiler.LanguageVersion = ctx.String(languageVersionFlag.Name)
	}
	if ctx.IsSet(optimizerFlag.Name) {
		cfg.Compiler.Optimizer = ctx.String(optimizerFlag.Name)
	}
	if ctx.IsSet(orderFlag.Name) {
		cfg.Compiler.Order = ctx.String(orderFlag.Name)
	}
	if ctx.IsSet(metadataHashFlag.Name) {
		cfg.Compiler.MetadataHash = ctx.Bool(metadataHashFlag.Name)
	}
	if ctx.IsSet(threadsFlag.Name) {
		cfg.Compiler.Threads = ctx.Int(threadsFlag.Name)
	}
	if ctx.IsSet(debugFlag.Name) {
		cfg.Compiler.Debug = ctx.Bool(debugFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Log.Verbosity = ctx.Int(verbosityFlag.Name)
	}
	if ctx.IsSet(logFileFlag.Name) {
		cfg.Log.File = ctx.String(logFileFlag.Name)
	}
	if ctx.IsSet(logMaxSizeFlag.Name) {
		cfg.Log.MaxSize = ctx.Int(logMaxSizeFlag.Name)
	}
	return cfg, nil
}

// compileSettings are the parsed compiler settings.
type compileSettings struct {
	version   *semver.Version
	optimizer codegen.OptimizerSettings
	order     ethereal.Order
}

func (c compilerConfig) settings() (*compileSettings, error) {
	version, err := semver.NewVersion(c.LanguageVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid language version %q: %v", c.LanguageVersion, err)
	}
	var mode byte
	switch len(c.Optimizer) {
	case 0:
	case 1:
		mode = c.Optimizer[0]
	default:
		return nil, fmt.Errorf("invalid optimizer mode %q", c.Optimizer)
	}
	optimizer, err := solc.NewOptimizer(true, mode).Settings()
	if err != nil {
		return nil, err
	}
	order, err := ethereal.ParseOrder(c.Order)
	if err != nil {
		return nil, err
	}
	return &compileSettings{version: version, optimizer: optimizer, order: order}, nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}
