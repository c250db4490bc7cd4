// Package jsonbuilder implements a fluent, state-checked constructor
// for jsonval.Value documents. It is the Go counterpart of a
// context-class builder: instead of leaning on the type system to
// forbid illegal call sequences at compile time, it tracks the
// current state at runtime and turns a misuse (a Key() outside a
// dict, a second Value() at the root, an unterminated container) into
// an error surfaced from Build.
package jsonbuilder

import (
	"errors"
	"fmt"

	"github.com/antigravity/transitcat/internal/jsonval"
)

// ErrIncompleteValue is returned by Build when the document is not
// finished: the root was never given a value, or a StartDict/StartArray
// was never closed.
var ErrIncompleteValue = errors.New("jsonbuilder: incomplete value")

// StateError reports a call that is illegal in the builder's current
// state, such as Key outside a dict or a second top-level Value.
type StateError struct {
	Call  string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("jsonbuilder: %s is not valid %s", e.Call, e.State)
}

type frameKind int

const (
	frameArray frameKind = iota
	frameDictExpectKey
	frameDictExpectValue
)

type frame struct {
	kind frameKind
	arr  []jsonval.Value
	obj  *jsonval.Object
	key  string
}

// Builder assembles a single jsonval.Value through chained calls. A
// zero Builder is ready to use.
type Builder struct {
	root     jsonval.Value
	haveRoot bool
	stack    []frame
	err      error
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) fail(call, state string) *Builder {
	if b.err == nil {
		b.err = &StateError{Call: call, State: state}
	}
	return b
}

func (b *Builder) top() (*frame, bool) {
	if len(b.stack) == 0 {
		return nil, false
	}
	return &b.stack[len(b.stack)-1], true
}

// place installs v at the current insertion point: as the root if the
// stack is empty, as the next array element, or as the value for the
// most recently given dict key.
func (b *Builder) place(v jsonval.Value) {
	top, ok := b.top()
	if !ok {
		if b.haveRoot {
			b.fail("Value", "after the root value is already set")
			return
		}
		b.root = v
		b.haveRoot = true
		return
	}
	switch top.kind {
	case frameArray:
		top.arr = append(top.arr, v)
	case frameDictExpectValue:
		top.obj.Set(top.key, v)
		top.key = ""
		top.kind = frameDictExpectKey
	case frameDictExpectKey:
		b.fail("Value", "in a dict awaiting a key")
	}
}

// Value appends v at the current insertion point.
func (b *Builder) Value(v jsonval.Value) *Builder {
	if b.err != nil {
		return b
	}
	if top, ok := b.top(); ok && top.kind == frameDictExpectKey {
		return b.fail("Value", "in a dict awaiting a key (call Key first)")
	}
	b.place(v)
	return b
}

// Key opens a slot for the next Value, StartDict, or StartArray call
// inside the dict currently being built. Calling Key outside a dict,
// or twice in a row, is an error.
func (b *Builder) Key(key string) *Builder {
	if b.err != nil {
		return b
	}
	top, ok := b.top()
	if !ok || top.kind != frameDictExpectKey {
		return b.fail("Key", "outside a dict awaiting a key")
	}
	top.key = key
	top.kind = frameDictExpectValue
	return b
}

// StartDict opens a new dict at the current insertion point.
func (b *Builder) StartDict() *Builder {
	if b.err != nil {
		return b
	}
	if top, ok := b.top(); ok && top.kind == frameDictExpectKey {
		return b.fail("StartDict", "in a dict awaiting a key (call Key first)")
	}
	if !b.canOpenContainer() {
		return b
	}
	b.stack = append(b.stack, frame{kind: frameDictExpectKey, obj: jsonval.NewObject()})
	return b
}

// StartArray opens a new array at the current insertion point.
func (b *Builder) StartArray() *Builder {
	if b.err != nil {
		return b
	}
	if top, ok := b.top(); ok && top.kind == frameDictExpectKey {
		return b.fail("StartArray", "in a dict awaiting a key (call Key first)")
	}
	if !b.canOpenContainer() {
		return b
	}
	b.stack = append(b.stack, frame{kind: frameArray})
	return b
}

func (b *Builder) canOpenContainer() bool {
	if _, ok := b.top(); !ok && b.haveRoot {
		b.fail("StartDict/StartArray", "after the root value is already set")
		return false
	}
	return true
}

// EndDict closes the innermost dict and places it at its parent's
// insertion point (or as the root, if the stack is now empty).
func (b *Builder) EndDict() *Builder {
	if b.err != nil {
		return b
	}
	top, ok := b.top()
	if !ok || top.kind == frameArray {
		return b.fail("EndDict", "without a matching StartDict")
	}
	if top.kind == frameDictExpectValue {
		return b.fail("EndDict", "in a dict awaiting a value for its last key")
	}
	obj := top.obj
	b.stack = b.stack[:len(b.stack)-1]
	b.place(jsonval.FromObject(obj))
	return b
}

// EndArray closes the innermost array and places it at its parent's
// insertion point (or as the root, if the stack is now empty).
func (b *Builder) EndArray() *Builder {
	if b.err != nil {
		return b
	}
	top, ok := b.top()
	if !ok || top.kind != frameArray {
		return b.fail("EndArray", "without a matching StartArray")
	}
	elems := top.arr
	b.stack = b.stack[:len(b.stack)-1]
	b.place(jsonval.Array(elems))
	return b
}

// Build finalizes the document. It fails if any container is still
// open, if the root was never set, or if an earlier call was invalid.
func (b *Builder) Build() (jsonval.Value, error) {
	if b.err != nil {
		return jsonval.Value{}, b.err
	}
	if len(b.stack) != 0 || !b.haveRoot {
		return jsonval.Value{}, ErrIncompleteValue
	}
	return b.root, nil
}
