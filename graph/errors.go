package graph

import "fmt"

// InvalidNodeError reports a NodeId that does not exist in the registry.
type InvalidNodeError struct {
	Id NodeId
}

func (e *InvalidNodeError) Error() string {
	return fmt.Sprintf("graph: invalid node id %d", e.Id)
}

// KindMismatchError reports an update that would change a node's kind,
// e.g. update_constant on a Formula node, or a Scalar<->Series promotion.
type KindMismatchError struct {
	Id      NodeId
	Wanted  Kind
	Got     Kind
	Message string
}

func (e *KindMismatchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph: node %d: %s", e.Id, e.Message)
	}
	return fmt.Sprintf("graph: node %d: expected kind %s, got %s", e.Id, e.Wanted, e.Got)
}

// NotAConstantError reports update_constant called on a non-constant node.
type NotAConstantError struct {
	Id NodeId
}

func (e *NotAConstantError) Error() string {
	return fmt.Sprintf("graph: node %d is not a constant", e.Id)
}

// UnknownOpError reports add_binary_formula called with an unrecognized
// operator string.
type UnknownOpError struct {
	Op string
}

func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("graph: unknown binary operator %q", e.Op)
}
