package domain

import (
	"fmt"
	"net/url"
)

// DecisionKind enumerates the four outcomes of an interception evaluation.
type DecisionKind uint8

const (
	DecisionContinue DecisionKind = iota
	DecisionRedirect
	DecisionBlock
	DecisionBlockWithSurrogate
)

// String returns a stable string representation of the decision kind.
func (k DecisionKind) String() string {
	switch k {
	case DecisionContinue:
		return "continue"
	case DecisionRedirect:
		return "redirect"
	case DecisionBlock:
		return "block"
	case DecisionBlockWithSurrogate:
		return "block_with_surrogate"
	default:
		return fmt.Sprintf("DecisionKind(%d)", k)
	}
}

// SurrogateCharset is the charset every surrogate body is served with.
const SurrogateCharset = "utf-8"

// Decision is the outcome of evaluating one InterceptRequest (oneof pattern).
// Exactly one of Continue, Redirect, Block or BlockWithSurrogate is produced per request.
type Decision interface {
	isDecision() // private marker method
	Kind() DecisionKind
	String() string
}

// Continue lets the original fetch proceed untouched.
type Continue struct{}

func (Continue) isDecision()        {}
func (Continue) Kind() DecisionKind { return DecisionContinue }
func (Continue) String() string     { return "continue" }

// Redirect abandons the original fetch; the caller navigates the top-level frame to Target.
// A nil Target is a contract violation of the upgrade oracle and must be treated as fatal by the caller.
type Redirect struct {
	Target *url.URL
}

func (Redirect) isDecision()        {}
func (Redirect) Kind() DecisionKind { return DecisionRedirect }
func (r Redirect) String() string {
	if r.Target == nil {
		return "redirect(<nil>)"
	}
	return "redirect(" + r.Target.String() + ")"
}

// Block replaces the fetch with an empty, content-less response.
type Block struct{}

func (Block) isDecision()        {}
func (Block) Kind() DecisionKind { return DecisionBlock }
func (Block) String() string     { return "block" }

// BlockWithSurrogate replaces the fetch with an inert stand-in body.
type BlockWithSurrogate struct {
	MIMEType string
	Charset  string
	Body     []byte
}

func (BlockWithSurrogate) isDecision()        {}
func (BlockWithSurrogate) Kind() DecisionKind { return DecisionBlockWithSurrogate }
func (b BlockWithSurrogate) String() string {
	return fmt.Sprintf("block_with_surrogate(%s, %d bytes)", b.MIMEType, len(b.Body))
}

var (
	_ Decision = Continue{}
	_ Decision = Redirect{}
	_ Decision = Block{}
	_ Decision = BlockWithSurrogate{}
)
