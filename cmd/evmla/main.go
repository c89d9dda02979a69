// Command evmla inspects and compiles solc legacy assembly.
package main

import (
	"fmt"
	"os"

	"github.com/ethereal-ir/evmla/core/evmla/ethereal"
	"github.com/ethereal-ir/evmla/params"
	"github.com/urfave/cli/v2"
)

const (
	compilerCategory = "COMPILER"
	loggingCategory  = "LOGGING AND DEBUGGING"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	languageVersionFlag = &cli.StringFlag{
		Name:     "solc-version",
		Usage:    "Language version the assembly was produced by",
		Value:    params.DefaultLanguageVersion.String(),
		Category: compilerCategory,
	}
	optimizerFlag = &cli.StringFlag{
		Name:     "optimization",
		Aliases:  []string{"O"},
		Usage:    "Backend optimization mode: 0-3, s or z (default: optimize for cycles)",
		Category: compilerCategory,
	}
	orderFlag = &cli.StringFlag{
		Name:     "order",
		Usage:    "Block emission order: declaration or topological",
		Value:    ethereal.DeclarationOrder.String(),
		Category: compilerCategory,
	}
	metadataHashFlag = &cli.BoolFlag{
		Name:     "metadata-hash",
		Usage:    "Append the metadata hash to the bytecode",
		Category: compilerCategory,
	}
	threadsFlag = &cli.IntFlag{
		Name:     "threads",
		Usage:    "Number of contracts compiled in parallel (0 = auto)",
		Category: compilerCategory,
	}
	outputDirFlag = &cli.StringFlag{
		Name:     "output-dir",
		Aliases:  []string{"o"},
		Usage:    "Directory the build artifacts are written to (default: stdout)",
		Category: compilerCategory,
	}
	debugFlag = &cli.BoolFlag{
		Name:     "debug",
		Usage:    "Trace the block graph assembly (same as EVMLA_DEBUG=1)",
		Category: loggingCategory,
	}
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: loggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a rotating file instead of the terminal",
		Category: loggingCategory,
	}
	logMaxSizeFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Usage:    "Rotate the log file once it grows past this many megabytes",
		Value:    64,
		Category: loggingCategory,
	}
	metricsFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Collect compiler metrics and print them on exit",
		Category: loggingCategory,
	}
)

var globalFlags = []cli.Flag{
	configFileFlag,
	languageVersionFlag,
	optimizerFlag,
	orderFlag,
	metadataHashFlag,
	threadsFlag,
	debugFlag,
	verbosityFlag,
	logFileFlag,
	logMaxSizeFlag,
	metricsFlag,
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "evmla"
	app.Usage = "block graph builder and compiler for solc legacy assembly"
	app.Version = params.CompilerVersion.String()
	app.Flags = globalFlags
	app.Commands = []*cli.Command{
		blocksCommand,
		dotCommand,
		statsCommand,
		compileCommand,
		dumpConfigCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
