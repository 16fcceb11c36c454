package vm

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the VM intermediate language.
//
// We declare a shared 'Operation' interface for every macro operation available for the
// language and we define some other useful top-level struct such as Program and Module.
// Is important to note that a VM program can be composed of multiple translation units
// that can be also referenced as file or modules or also classes.

// A VM Program is just a set of multiple modules/files, in the VM spec each Jack class is
// translated to its own .vm file (just like Java .class file) that can be handled as its
// own translation unit during the compilation or lowering phases.
type Program map[string]Module

// A VM Module is just a linear list of VM operations/instructions
type Module []Operation

// Used to put together all operation in the VM language (Memory, Arithmetic, ... ops).
type Operation interface{}

// ----------------------------------------------------------------------------
// Memory Op

// In memory representation of a Memory operation for the VM language.
//
// In the VM intermediate language there are only two possible memory operation on the stack.
// We could either push a new value taken from the specified segment location on the stack's
// top or take the stack's top and saves its value at the specified segment location.
type MemoryOp struct {
	Operation OperationType // The type of operation, either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment to use (this, that, temp, ...)
	Offset    uint16        // The specific location/offset inside of the memory segment
}

type OperationType string // Enum to manage the operation allowed for a MemoryOp

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

type SegmentType string // Enum to manage the segment accessible for a MemoryOp

const (
	Temp     SegmentType = "temp"     // Real segment used to store intermediate computations
	Constant SegmentType = "constant" // Virtual segment used to access numeric constant

	Local    SegmentType = "local"    // Real segment used to store local function variables
	Static   SegmentType = "static"   // Real segment used to store shared/static variables
	Argument SegmentType = "argument" // Real segment used to store function's argument

	This    SegmentType = "this"    // Virtual segment used to point to a specific memory location
	That    SegmentType = "that"    // Virtual segment used to point to a specific memory location
	Pointer SegmentType = "pointer" // Real segment w/ 2 location used to set the 'this' and 'that' pointers
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// In memory representation of a Arithmetic operation for the VM language.
//
// In the VM intermediate language there are just a handful of operation available.
// In particular each operation acts directly on the top of the stack, of course we have both unary
// and binary operation, the specific management of each op will be handled in the lowering phase.
type ArithmeticOp struct{ Operation ArithOpType }

type ArithOpType string // Enum to manage the operation allowed for an ArithmeticOp

const (
	Eq ArithOpType = "eq" // Comparison operations
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	Add ArithOpType = "add" // Arithmetic operations
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Not ArithOpType = "not" // Bitwise operations
	And ArithOpType = "and"
	Or  ArithOpType = "or"
)

// ----------------------------------------------------------------------------
// Control flow Ops

// In memory representation of a label declaration for the VM language.
//
// Labels (and the jumps targeting them) live in the namespace of the enclosing
// function: during lowering the name is prefixed with the function name so that
// the same label can be reused freely across different functions.
type LabelDecl struct {
	Name string // The symbol/ident chosen by the user for the label
}

// In memory representation of a jump operation for the VM language.
//
// Jumps can either be unconditional ('goto') or conditional ('if-goto'), the latter
// pops the stack's top and takes the branch only when the popped value is non-zero.
type GotoOp struct {
	Jump  JumpType // Whether the jump is conditional on the stack's top or not
	Label string   // The target label, resolved in the enclosing function namespace
}

type JumpType string // Enum to manage the jump flavors available for a GotoOp

const (
	Unconditional JumpType = "goto"
	Conditional   JumpType = "if-goto"
)

// ----------------------------------------------------------------------------
// Function Ops

// In memory representation of a function declaration for the VM language.
//
// A function declaration marks the entrypoint of a callable unit and carries the
// number of local variables that the prologue has to initialize to zero.
type FuncDecl struct {
	Name    string // Fully qualified function name (e.g. 'Main.fibonacci')
	NLocals uint16 // How many zero-initialized locals the prologue allocates
}

// In memory representation of a function call operation for the VM language.
//
// A call saves the caller frame (return address plus the LCL/ARG/THIS/THAT pointers)
// on the stack, repositions ARG and LCL for the callee and jumps to its entrypoint.
type FuncCallOp struct {
	Name  string // Fully qualified name of the callee
	NArgs uint16 // How many arguments have been pushed by the caller
}

// In memory representation of a return operation for the VM language.
//
// The return sequence places the callee's result in the caller-visible slot, restores
// the saved caller frame and jumps back to the saved return address.
type ReturnOp struct{}
