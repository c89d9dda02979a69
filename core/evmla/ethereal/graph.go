package ethereal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereal-ir/evmla/core/codegen"
	"github.com/ethereal-ir/evmla/core/evmla/assembly"
	"github.com/holiman/uint256"
)

// Order selects the order in which blocks are handed to the code generator.
type Order uint8

const (
	DeclarationOrder Order = iota // region, tag position in the source, instance
	TopologicalOrder              // reverse post-order from each region entry
)

// ParseOrder converts the textual order name used by the CLI and config.
func ParseOrder(name string) (Order, error) {
	switch name {
	case "", "declaration":
		return DeclarationOrder, nil
	case "topological":
		return TopologicalOrder, nil
	}
	return 0, fmt.Errorf("unknown block order %q", name)
}

func (o Order) String() string {
	if o == TopologicalOrder {
		return "topological"
	}
	return "declaration"
}

// Region is the block graph of one code region. Blocks produced by the
// partition are templates; the assembly pass specialises them into
// instances, one per distinct entry stack shape.
type Region struct {
	CodeType codegen.CodeType

	blocks    []*Block
	index     map[uint256.Int]int
	instances [][]*Block
}

type edgeKind uint8

const (
	entryEdge edgeKind = iota
	jumpEdge
	fallthroughEdge
)

// visit is a pending edge of the assembly pass: control enters the template
// at position index with the given stack, coming from block from. Jump edges
// also name the jumping element.
type visit struct {
	index   int
	entry   Stack
	from    *Block
	element int
	kind    edgeKind
}

func newRegion(version *semver.Version, codeType codegen.CodeType, instructions []assembly.Instruction) (*Region, error) {
	blocks, err := Partition(version, codeType, instructions)
	if err != nil {
		return nil, err
	}
	r := &Region{
		CodeType:  codeType,
		blocks:    blocks,
		index:     make(map[uint256.Int]int, len(blocks)),
		instances: make([][]*Block, len(blocks)),
	}
	for i, block := range blocks {
		if i > 0 && !block.tagged {
			return nil, &BlockError{Key: block.Key, Instance: -1, Index: -1,
				Err: fmt.Errorf("%w: untagged block at position %d of the %v code", ErrMalformedInput, i, codeType)}
		}
		if prev, ok := r.index[block.Key.Tag]; ok {
			return nil, &BlockError{Key: block.Key, Instance: -1, Index: -1,
				Err: fmt.Errorf("%w: tag defined twice, at blocks %d and %d", ErrMalformedInput, prev, i)}
		}
		r.index[block.Key.Tag] = i
	}
	return r, nil
}

// link walks the region from its entry block, specialising every reachable
// block for each entry stack shape and wiring predecessors and successors.
func (r *Region) link() error {
	queue := []visit{{index: 0, entry: NewStack(), kind: entryEdge}}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		block, replayed, err := r.enter(v)
		if err != nil {
			return err
		}
		if !replayed {
			continue
		}
		succs, err := r.successors(block, v.index)
		if err != nil {
			return err
		}
		queue = append(queue, succs...)
	}
	return nil
}

// enter resolves a pending edge to an instance, creating and replaying a new
// one if no instance with the same entry shape exists yet. A merged route
// that disagrees on a constant generalises the instance entry and replays it
// again. It reports whether the instance has to propagate to its successors.
func (r *Region) enter(v visit) (*Block, bool, error) {
	var (
		block   *Block
		replay  bool
		created bool
		shape   = v.entry.Shape()
	)
	for _, inst := range r.instances[v.index] {
		if inst.shape == shape {
			block = inst
			block.addRoute(v.entry.Digest())
			replay = block.InitialStack.generalize(&v.entry)
			break
		}
	}
	if block == nil {
		block = r.blocks[v.index].specialize(len(r.instances[v.index]), v.entry)
		r.instances[v.index] = append(r.instances[v.index], block)
		replay, created = true, true
		instancesCounter.Inc(1)
	}
	ref := block.Ref()
	switch v.kind {
	case jumpEdge:
		v.from.Elements[v.element].target = &ref
	case fallthroughEdge:
		v.from.next = &ref
	}
	if v.from != nil {
		block.InsertPredecessor(v.from.Key, v.from.instance)
	}
	if !replay {
		return block, false, nil
	}
	if err := block.Replay(); err != nil {
		return nil, false, err
	}
	if created {
		debugTrace("Specialised block", "block", ref, "entry", &block.InitialStack, "exit", &block.Stack)
	} else {
		debugTrace("Generalised block", "block", ref, "entry", &block.InitialStack, "exit", &block.Stack)
	}
	return block, true, nil
}

// successors returns the edges leaving a freshly replayed instance: one per
// JUMP or JUMPI, entered with the stack right after the jump, and the edge
// to the textually next block unless the block ends with an unconditional
// exit.
func (r *Region) successors(block *Block, index int) ([]visit, error) {
	var succs []visit
	for i := range block.Elements {
		elem := &block.Elements[i]
		if name := elem.Instruction.Name; name != assembly.JUMP && name != assembly.JUMPI {
			continue
		}
		target, err := r.resolve(block, i, elem.Operands()[0])
		if err != nil {
			return nil, err
		}
		succs = append(succs, visit{index: target, entry: elem.stack.Snapshot(), from: block, element: i, kind: jumpEdge})
	}
	if block.Exit() == nil && index+1 < len(r.blocks) {
		succs = append(succs, visit{index: index + 1, entry: block.Stack.Snapshot(), from: block, kind: fallthroughEdge})
	}
	return succs, nil
}

// resolve maps a jump destination slot to the template it enters.
func (r *Region) resolve(block *Block, element int, dest Slot) (int, error) {
	instr := &block.Elements[element].Instruction
	if !dest.Known() {
		return 0, block.errorAt(element, instr, fmt.Errorf("%w: jump destination %v is not a tag", ErrMalformedInput, dest))
	}
	index, ok := r.index[dest.Value]
	if !ok {
		return 0, block.errorAt(element, instr, fmt.Errorf("%w: jump to undefined tag %s", ErrDanglingPredecessor, dest.Value.Dec()))
	}
	return index, nil
}

// Templates returns the blocks of the partition in declaration order.
func (r *Region) Templates() []*Block {
	return r.blocks
}

// Instances returns every specialised block in declaration order.
func (r *Region) Instances() []*Block {
	var out []*Block
	for _, insts := range r.instances {
		out = append(out, insts...)
	}
	return out
}

// Lookup finds the instance referenced by ref.
func (r *Region) Lookup(ref codegen.BlockRef) (*Block, bool) {
	if ref.Key.CodeType != r.CodeType {
		return nil, false
	}
	index, ok := r.index[ref.Key.Tag]
	if !ok || ref.Instance < 0 || ref.Instance >= len(r.instances[index]) {
		return nil, false
	}
	return r.instances[index][ref.Instance], true
}

func (r *Region) entry() *Block {
	if len(r.instances) == 0 || len(r.instances[0]) == 0 {
		return nil
	}
	return r.instances[0][0]
}

// topological returns the instances in reverse post-order from the entry.
// Back edges are ignored, unreachable instances follow in declaration order.
func (r *Region) topological() []*Block {
	var (
		visited = make(map[*Block]bool)
		post    []*Block
		walk    func(b *Block)
	)
	walk = func(b *Block) {
		visited[b] = true
		for _, ref := range b.Successors() {
			if succ, ok := r.Lookup(ref); ok && !visited[succ] {
				walk(succ)
			}
		}
		post = append(post, b)
	}
	if entry := r.entry(); entry != nil {
		walk(entry)
	}
	order := make([]*Block, 0, len(post))
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for _, b := range r.Instances() {
		if !visited[b] {
			order = append(order, b)
		}
	}
	return order
}

// Graph is the block graph of a contract: the deploy region and, if present,
// the runtime region.
type Graph struct {
	version *semver.Version
	regions []*Region
}

// Assemble partitions both instruction streams, resolves jump tags and links
// the blocks. The runtime stream may be empty for objects without one.
func Assemble(version *semver.Version, deploy, runtime []assembly.Instruction) (*Graph, error) {
	start := time.Now()
	defer assembleTimer.UpdateSince(start)

	graph := &Graph{version: version}
	for _, stream := range []struct {
		codeType     codegen.CodeType
		instructions []assembly.Instruction
	}{
		{codegen.Deploy, deploy},
		{codegen.Runtime, runtime},
	} {
		if len(stream.instructions) == 0 && stream.codeType == codegen.Runtime {
			continue
		}
		region, err := newRegion(version, stream.codeType, stream.instructions)
		if err != nil {
			return nil, err
		}
		if err := region.link(); err != nil {
			return nil, err
		}
		graph.regions = append(graph.regions, region)
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	debugTrace("Assembled block graph", "version", version, "blocks", len(graph.Blocks(DeclarationOrder)), "elapsed", time.Since(start))
	return graph, nil
}

// Version returns the language version the graph was built for.
func (g *Graph) Version() *semver.Version {
	return g.version
}

// Regions returns the code regions, deploy first.
func (g *Graph) Regions() []*Region {
	return g.regions
}

// Region returns the region of the given code type, if present.
func (g *Graph) Region(codeType codegen.CodeType) (*Region, bool) {
	for _, r := range g.regions {
		if r.CodeType == codeType {
			return r, true
		}
	}
	return nil, false
}

// Lookup finds an instance anywhere in the graph.
func (g *Graph) Lookup(ref codegen.BlockRef) (*Block, bool) {
	r, ok := g.Region(ref.Key.CodeType)
	if !ok {
		return nil, false
	}
	return r.Lookup(ref)
}

// Validate checks that every predecessor and successor reference points at an
// existing instance.
func (g *Graph) Validate() error {
	for _, r := range g.regions {
		for _, b := range r.Instances() {
			refs := append(b.Predecessors(), b.Successors()...)
			for _, ref := range refs {
				if _, ok := g.Lookup(ref); !ok {
					return &BlockError{Key: b.Key, Instance: b.instance, Index: -1,
						Err: fmt.Errorf("%w: block_%s", ErrDanglingPredecessor, ref)}
				}
			}
		}
	}
	return nil
}

// Blocks returns every instance in the requested order.
func (g *Graph) Blocks(order Order) []*Block {
	var out []*Block
	for _, r := range g.regions {
		if order == TopologicalOrder {
			out = append(out, r.topological()...)
		} else {
			out = append(out, r.Instances()...)
		}
	}
	return out
}

// Emit lowers every block into the context in the requested order.
func (g *Graph) Emit(ctx codegen.Context, order Order) error {
	for _, b := range g.Blocks(order) {
		if err := b.Emit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) String() string {
	var out strings.Builder
	for _, b := range g.Blocks(DeclarationOrder) {
		out.WriteString(b.String())
	}
	return out.String()
}
