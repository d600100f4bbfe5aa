package releases

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Policy decides what happens to assets the resolver rejects
type Policy string

const (
	PolicyNever   Policy = "never"
	PolicyAuto    Policy = "auto"
	PolicyConfirm Policy = "confirm"
)

// ParsePolicy validates a policy name; empty means PolicyNever
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyNever, nil
	case PolicyNever, PolicyAuto, PolicyConfirm:
		return p, nil
	default:
		return "", fmt.Errorf("unknown deletion policy %q (want never, auto or confirm)", s)
	}
}

// Confirmer asks whether an asset may be deleted
type Confirmer interface {
	Confirm(asset Asset, reason string) bool
}

// PromptConfirmer asks on a terminal
type PromptConfirmer struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewScanner(in), out: out}
}

// Confirm accepts "y" or "yes"; anything else, including EOF, declines
func (c *PromptConfirmer) Confirm(asset Asset, reason string) bool {
	fmt.Fprintf(c.out, "Delete %s from %s (%s)? [y/N] ", asset.Name, asset.Release, reason)
	if !c.in.Scan() {
		fmt.Fprintln(c.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(c.in.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

// Pruner removes rejected assets according to a policy
type Pruner struct {
	source    Source
	policy    Policy
	reasons   map[string]bool
	confirmer Confirmer
}

// NewPruner returns a pruner acting on the given rejection reasons.
// A confirmer is required for PolicyConfirm.
func NewPruner(source Source, policy Policy, reasons []string, confirmer Confirmer) (*Pruner, error) {
	if policy == PolicyConfirm && confirmer == nil {
		return nil, fmt.Errorf("confirm policy needs a confirmer")
	}
	set := make(map[string]bool, len(reasons))
	for _, r := range reasons {
		set[r] = true
	}
	return &Pruner{source: source, policy: policy, reasons: set, confirmer: confirmer}, nil
}

// Handle deletes asset if the policy allows it and reports whether it did
func (p *Pruner) Handle(ctx context.Context, asset Asset, reason string) (bool, error) {
	if p == nil || !p.reasons[reason] {
		return false, nil
	}
	switch p.policy {
	case PolicyAuto:
	case PolicyConfirm:
		if !p.confirmer.Confirm(asset, reason) {
			return false, nil
		}
	default:
		return false, nil
	}
	if err := p.source.DeleteAsset(ctx, asset.ID); err != nil {
		return false, err
	}
	return true, nil
}
