package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereal-ir/evmla/common/gopool"
	"github.com/ethereal-ir/evmla/core/evmla/ethereal"
	"github.com/ethereal-ir/evmla/core/project"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var (
	dotTitleFlag = &cli.StringFlag{
		Name:  "title",
		Usage: "Graph title (default: the file name)",
	}

	blocksCommand = &cli.Command{
		Name:      "blocks",
		Usage:     "Print the block graph of a legacy assembly file",
		ArgsUsage: "<file.json>",
		Action:    withSetup(printBlocks),
	}
	dotCommand = &cli.Command{
		Name:      "dot",
		Usage:     "Render the block graph of a legacy assembly file in Graphviz format",
		ArgsUsage: "<file.json>",
		Flags:     []cli.Flag{dotTitleFlag, outputDirFlag},
		Action:    withSetup(printDOT),
	}
	statsCommand = &cli.Command{
		Name:      "stats",
		Usage:     "Summarise the block graphs of legacy assembly files",
		ArgsUsage: "<file.json> [<file.json> ...]",
		Action:    withSetup(printStats),
	}
	compileCommand = &cli.Command{
		Name:      "compile",
		Usage:     "Compile contracts (.json legacy assembly, .ll, .zasm)",
		ArgsUsage: "<file> [<file> ...]",
		Flags:     []cli.Flag{outputDirFlag},
		Action:    withSetup(compileFiles),
	}
	dumpConfigCommand = &cli.Command{
		Name:   "dumpconfig",
		Usage:  "Export the effective configuration as TOML",
		Action: dumpConfig,
	}
)

type action func(ctx *cli.Context, settings *compileSettings, cfg evmlaConfig) error

// withSetup resolves the configuration and installs logging before running
// the command.
func withSetup(fn action) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		cfg, err := makeConfig(ctx)
		if err != nil {
			return err
		}
		settings, err := cfg.Compiler.settings()
		if err != nil {
			return err
		}
		stop, err := setupLogging(cfg.Log)
		if err != nil {
			return err
		}
		defer stop()
		undo, err := gopool.FitQuota()
		if err != nil {
			log.Warn("Failed to fit GOMAXPROCS to the CPU quota", "err", err)
		} else {
			defer undo()
		}
		if cfg.Compiler.Debug {
			ethereal.EnableDebugLogs(true)
		}
		if err := fn(ctx, settings, cfg); err != nil {
			return err
		}
		if metrics.Enabled {
			printMetrics(ctx)
		}
		return nil
	}
}

func loadContracts(ctx *cli.Context, settings *compileSettings, minArgs int) ([]*project.Contract, error) {
	if ctx.NArg() < minArgs {
		return nil, fmt.Errorf("required arguments: %v", ctx.Command.ArgsUsage)
	}
	contracts := make([]*project.Contract, 0, ctx.NArg())
	for _, path := range ctx.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		contract, err := project.LoadContract(path, data, settings.version, settings.order)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

func loadGraph(contract *project.Contract, settings *compileSettings) (*ethereal.Graph, error) {
	evmla, ok := contract.IR.(*project.EVMLA)
	if !ok {
		return nil, fmt.Errorf("%s: not a legacy assembly file", contract.Path)
	}
	if err := evmla.Declare(settings.version); err != nil {
		return nil, fmt.Errorf("%s: %w", contract.Path, err)
	}
	return evmla.Graph(), nil
}

func printBlocks(ctx *cli.Context, settings *compileSettings, _ evmlaConfig) error {
	contracts, err := loadContracts(ctx, settings, 1)
	if err != nil {
		return err
	}
	graph, err := loadGraph(contracts[0], settings)
	if err != nil {
		return err
	}
	for _, block := range graph.Blocks(settings.order) {
		fmt.Fprint(ctx.App.Writer, block.String())
	}
	return nil
}

func printDOT(ctx *cli.Context, settings *compileSettings, _ evmlaConfig) error {
	contracts, err := loadContracts(ctx, settings, 1)
	if err != nil {
		return err
	}
	graph, err := loadGraph(contracts[0], settings)
	if err != nil {
		return err
	}
	title := ctx.String(dotTitleFlag.Name)
	if title == "" {
		title = filepath.Base(contracts[0].Path)
	}
	dot := graph.DOT(title)
	if dir := ctx.String(outputDirFlag.Name); dir != "" {
		out := filepath.Join(dir, strings.TrimSuffix(filepath.Base(contracts[0].Path), filepath.Ext(contracts[0].Path))+".dot")
		if err := os.WriteFile(out, dot, 0644); err != nil {
			return err
		}
		log.Info("Wrote block graph", "file", out, "blocks", len(graph.Blocks(ethereal.DeclarationOrder)))
		return nil
	}
	_, err = ctx.App.Writer.Write(dot)
	return err
}

func printStats(ctx *cli.Context, settings *compileSettings, _ evmlaConfig) error {
	contracts, err := loadContracts(ctx, settings, 1)
	if err != nil {
		return err
	}
	var data [][]string
	for _, contract := range contracts {
		graph, err := loadGraph(contract, settings)
		if err != nil {
			return err
		}
		for _, s := range graph.Stats() {
			data = append(data, []string{
				contract.Path, s.Region,
				fmt.Sprint(s.Templates), fmt.Sprint(s.Instances), fmt.Sprint(s.Elements),
				fmt.Sprint(s.Edges), fmt.Sprint(s.Folded), fmt.Sprint(s.ExtraHashes), fmt.Sprint(s.MaxStack),
			})
		}
	}
	table := tablewriter.NewWriter(ctx.App.Writer)
	table.SetHeader([]string{"File", "Region", "Templates", "Instances", "Elements", "Edges", "Folded", "Merged routes", "Max stack"})
	table.AppendBulk(data)
	table.Render()
	return nil
}

func compileFiles(ctx *cli.Context, settings *compileSettings, cfg evmlaConfig) error {
	contracts, err := loadContracts(ctx, settings, 1)
	if err != nil {
		return err
	}
	p := project.New(settings.version, contracts...)
	builds, compileErr := p.CompileAll(settings.optimizer, cfg.Compiler.MetadataHash, cfg.Compiler.Threads)

	dir := ctx.String(outputDirFlag.Name)
	var data [][]string
	for _, path := range p.Paths() {
		build, ok := builds[path]
		if !ok {
			continue
		}
		if dir == "" {
			fmt.Fprintf(ctx.App.Writer, "%s", build.Build.Assembly)
		} else {
			out := filepath.Join(dir, filepath.Base(path)+".evmla")
			if err := os.WriteFile(out, build.Build.Bytecode, 0644); err != nil {
				return errors.Join(compileErr, err)
			}
		}
		data = append(data, []string{path, build.Build.Hash.Hex(), fmt.Sprint(len(build.Build.Bytecode)), strings.Join(build.FactoryDependencies, " ")})
	}
	if dir != "" {
		table := tablewriter.NewWriter(ctx.App.Writer)
		table.SetHeader([]string{"Contract", "Hash", "Size", "Factory dependencies"})
		table.AppendBulk(data)
		table.Render()
	}
	return compileErr
}

func printMetrics(ctx *cli.Context) {
	var data [][]string
	for name, fields := range metrics.DefaultRegistry.GetAll() {
		for field, value := range fields {
			data = append(data, []string{name, field, fmt.Sprint(value)})
		}
	}
	sort.Slice(data, func(i, j int) bool {
		if data[i][0] != data[j][0] {
			return data[i][0] < data[j][0]
		}
		return data[i][1] < data[j][1]
	})
	table := tablewriter.NewWriter(ctx.App.ErrWriter)
	table.SetHeader([]string{"Metric", "Field", "Value"})
	table.AppendBulk(data)
	table.Render()
}
