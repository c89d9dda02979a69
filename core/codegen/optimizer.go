package codegen

import "fmt"

// OptimizerLevel mirrors the optimisation levels of the target toolchain.
type OptimizerLevel uint8

const (
	LevelNone OptimizerLevel = iota
	LevelLess
	LevelDefault
	LevelAggressive
)

// OptimizerSettings selects how hard the target backend optimises, and
// whether it trades speed for size.
type OptimizerSettings struct {
	Level     OptimizerLevel `json:"level"`
	SizeLevel uint8          `json:"size_level"`
}

// OptimizerSettingsFromCLI parses the `-O` mode character: 0-3 for speed
// levels, s and z for the size levels.
func OptimizerSettingsFromCLI(mode byte) (OptimizerSettings, error) {
	switch mode {
	case '0':
		return OptimizerSettings{Level: LevelNone}, nil
	case '1':
		return OptimizerSettings{Level: LevelLess}, nil
	case '2':
		return OptimizerSettings{Level: LevelDefault}, nil
	case '3':
		return CyclesOptimizerSettings(), nil
	case 's':
		return OptimizerSettings{Level: LevelDefault, SizeLevel: 1}, nil
	case 'z':
		return OptimizerSettings{Level: LevelDefault, SizeLevel: 2}, nil
	}
	return OptimizerSettings{}, fmt.Errorf("unexpected optimization option %q, expected one of 0-3, s, z", mode)
}

// CyclesOptimizerSettings optimises for execution cycles.
func CyclesOptimizerSettings() OptimizerSettings {
	return OptimizerSettings{Level: LevelAggressive}
}

// Mode returns the CLI mode character of the settings.
func (s OptimizerSettings) Mode() byte {
	switch s.SizeLevel {
	case 1:
		return 's'
	case 2:
		return 'z'
	}
	return '0' + byte(s.Level)
}

func (s OptimizerSettings) String() string {
	return "O" + string(s.Mode())
}
