package jack

import (
	"fmt"

	"its-hmny.dev/hack-toolchain/pkg/vm"
)

// ----------------------------------------------------------------------------
// Symbol Tables

// This section defines the two-scope symbol store used by the lowering phase.
//
// Variables partition into two scopes: the class scope holds the 'static' and 'field'
// kinds and lives for a whole compilation unit, the subroutine scope holds 'argument'
// and 'local' and is replaced at each subroutine entry. Every (scope, kind) pair keeps
// its own monotonically increasing index, starting at zero, that doubles as the
// variable's offset inside its virtual memory segment.

// A resolved symbol, the (type, kind, index) triple bound to a variable name.
type Symbol struct {
	Type  string  // Either a primitive type or a class name
	Kind  VarKind // The storage kind, determines the virtual memory segment
	Index uint16  // The offset of the variable inside its segment
}

// A single-scope name -> Symbol store with a per-kind next-index counter.
type SymbolTable struct {
	symbols  map[string]Symbol
	counters map[VarKind]uint16
}

// Initializes and returns to the caller a brand new 'SymbolTable' struct.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: map[string]Symbol{}, counters: map[VarKind]uint16{}}
}

// Binds 'name' to a fresh Symbol of the given type and kind, returning the allocated
// index. Declaring the same name twice in a single scope is an error.
func (st *SymbolTable) Register(name, varType string, kind VarKind) (uint16, error) {
	if _, exists := st.symbols[name]; exists {
		return 0, fmt.Errorf("symbol '%s' already declared in this scope", name)
	}

	index := st.counters[kind]
	st.symbols[name] = Symbol{Type: varType, Kind: kind, Index: index}
	st.counters[kind] = index + 1
	return index, nil
}

// Returns the Symbol bound to 'name', if any.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	symbol, found := st.symbols[name]
	return symbol, found
}

// Returns how many variables of the given kind have been declared in this scope.
func (st *SymbolTable) Count(kind VarKind) uint16 {
	return st.counters[kind]
}

// ----------------------------------------------------------------------------
// Scope Table

// Puts together the class and subroutine symbol tables with the lookup precedence
// mandated by the language: names resolve in the subroutine scope first, then in
// the class scope. A name absent from both is not a variable (when the context
// allows it, the lowering phase treats it as a class name).
type ScopeTable struct {
	class      *SymbolTable
	subroutine *SymbolTable
}

// Initializes and returns to the caller a brand new 'ScopeTable' struct.
// The class scope spans the whole compilation unit, the subroutine scope starts
// empty and is replaced by each 'EnterSubroutine' call.
func NewScopeTable() *ScopeTable {
	return &ScopeTable{class: NewSymbolTable(), subroutine: NewSymbolTable()}
}

// Discards the current subroutine scope and starts a fresh one, the per-kind
// counters restart from zero.
func (st *ScopeTable) EnterSubroutine() {
	st.subroutine = NewSymbolTable()
}

// Registers a variable in the scope owning its kind ('static' and 'field' belong
// to the class scope, 'argument' and 'local' to the subroutine one).
func (st *ScopeTable) Register(v Variable) (uint16, error) {
	switch v.Kind {
	case Static, Field:
		return st.class.Register(v.Name, v.Type, v.Kind)
	case Argument, Local:
		return st.subroutine.Register(v.Name, v.Type, v.Kind)
	default:
		return 0, fmt.Errorf("unrecognized variable kind '%s'", v.Kind)
	}
}

// Resolves a name, looking first in the subroutine scope then in the class one.
func (st *ScopeTable) Resolve(name string) (Symbol, bool) {
	if symbol, found := st.subroutine.Lookup(name); found {
		return symbol, true
	}
	return st.class.Lookup(name)
}

// Returns how many 'field' variables the class scope holds, the amount of words a
// constructor has to allocate for a new object instance.
func (st *ScopeTable) FieldCount() uint16 {
	return st.class.Count(Field)
}

// Returns how many 'local' variables the current subroutine scope holds.
func (st *ScopeTable) LocalCount() uint16 {
	return st.subroutine.Count(Local)
}

// Maps a variable kind to the virtual memory segment addressing it ('field'
// variables are reached through the 'this' segment).
func SegmentOf(kind VarKind) vm.SegmentType {
	switch kind {
	case Static:
		return vm.Static
	case Field:
		return vm.This
	case Argument:
		return vm.Argument
	default:
		return vm.Local
	}
}
