package project

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/common/gopool"
	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/exp/maps"
)

var (
	compileTimer         = metrics.NewRegisteredTimer("project/compile", nil)
	compiledMeter        = metrics.NewRegisteredMeter("project/contracts", nil)
	compileFailedCounter = metrics.NewRegisteredCounter("project/failed", nil)
)

// Project is a set of contracts compiled with one language version.
type Project struct {
	Version   *semver.Version
	Contracts map[string]*Contract
}

// New creates a project from contracts keyed by their path.
func New(version *semver.Version, contracts ...*Contract) *Project {
	p := &Project{Version: version, Contracts: make(map[string]*Contract, len(contracts))}
	for _, c := range contracts {
		p.Contracts[c.Path] = c
	}
	return p
}

// Paths returns the contract paths in sorted order.
func (p *Project) Paths() []string {
	paths := maps.Keys(p.Contracts)
	slices.Sort(paths)
	return paths
}

// CompileAll compiles every contract on a worker pool of the given size,
// zero meaning one worker per CPU. All contracts are attempted; the
// failures are joined in path order.
func (p *Project) CompileAll(optimizer codegen.OptimizerSettings, includeMetadataHash bool, threads int) (map[string]*Build, error) {
	start := time.Now()
	defer compileTimer.UpdateSince(start)

	paths := p.Paths()
	if threads <= 0 {
		threads = gopool.Threads(len(paths))
	}
	pool, err := gopool.New(threads)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		lock   sync.Mutex
		builds = make(map[string]*Build, len(paths))
		errs   = make(map[string]error)
	)
	for _, path := range paths {
		contract := p.Contracts[path]
		err := pool.Go(func() {
			build, err := contract.Compile(p.Version, optimizer, includeMetadataHash)

			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				errs[contract.Path] = err
				return
			}
			builds[contract.Path] = build
		})
		if err != nil {
			errs[path] = fmt.Errorf("contract `%s`: %w", path, err)
		}
	}
	pool.Wait()

	compiledMeter.Mark(int64(len(builds)))
	compileFailedCounter.Inc(int64(len(errs)))
	if len(errs) > 0 {
		joined := make([]error, 0, len(errs))
		for _, path := range paths {
			if err, ok := errs[path]; ok {
				joined = append(joined, err)
			}
		}
		log.Error("Project compilation failed", "contracts", len(paths), "failed", len(errs))
		return builds, errors.Join(joined...)
	}
	log.Info("Compiled project", "contracts", len(builds), "threads", threads, "elapsed", time.Since(start))
	return builds, nil
}
