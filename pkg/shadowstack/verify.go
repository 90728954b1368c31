package shadowstack

import (
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// Validate checks the plan's internal consistency. Code generators must
// refuse a plan that fails validation.
func (p *Plan) Validate() error {
	if p.FrameSize < 0 {
		return invariantf(p.Method, NoVar, "negative frame size %d", p.FrameSize)
	}
	if len(p.Records) != len(p.Safepoints) {
		return invariantf(p.Method, NoVar, "records cover %d blocks, safepoints %d", len(p.Records), len(p.Safepoints))
	}
	for b, sps := range p.Safepoints {
		recs := p.Records[b]
		if len(recs) != len(sps) {
			return invariantf(p.Method, NoVar, "b%d has %d safepoints but %d records", b, len(sps), len(recs))
		}
		for i, sp := range sps {
			rec := recs[i]
			if rec.Block != sp.Block || rec.Instruction != sp.Instruction {
				return invariantf(p.Method, NoVar, "record b%d[%d] does not match safepoint b%d[%d]",
					rec.Block, rec.Instruction, sp.Block, sp.Instruction)
			}
			for _, v := range sp.Live {
				if c := p.colorOf(v); c < 0 || c >= p.FrameSize {
					return invariantf(p.Method, v, "live at b%d[%d] without a valid slot (%d)", sp.Block, sp.Instruction, c)
				}
			}
			if err := p.validateActions(sp, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Plan) validateActions(sp Safepoint, rec UpdateRecord) error {
	lastSlot := -1
	for _, a := range rec.Actions {
		if a.Slot < 0 || a.Slot >= p.FrameSize {
			return invariantf(p.Method, a.Var, "b%d[%d]: slot %d outside frame of size %d",
				rec.Block, rec.Instruction, a.Slot, p.FrameSize)
		}
		if a.Slot <= lastSlot {
			return invariantf(p.Method, a.Var, "b%d[%d]: actions not in slot order", rec.Block, rec.Instruction)
		}
		lastSlot = a.Slot
		switch a.Kind {
		case ActionStore:
			if !contains(sp.Live, a.Var) {
				return invariantf(p.Method, a.Var, "b%d[%d]: stored but not live", rec.Block, rec.Instruction)
			}
			if p.colorOf(a.Var) != a.Slot {
				return invariantf(p.Method, a.Var, "b%d[%d]: stored into slot %d but colored %d",
					rec.Block, rec.Instruction, a.Slot, p.colorOf(a.Var))
			}
			if p.isAutoSpilled(a.Var) {
				return invariantf(p.Method, a.Var, "b%d[%d]: auto-spilled variable stored", rec.Block, rec.Instruction)
			}
		case ActionClear:
		default:
			return invariantf(p.Method, a.Var, "b%d[%d]: unexpected action %v", rec.Block, rec.Instruction, a.Kind)
		}
	}
	return nil
}

func (p *Plan) colorOf(v ir.Var) int {
	if int(v) < 0 || int(v) >= len(p.Colors) {
		return -1
	}
	return p.Colors[v]
}

func (p *Plan) isAutoSpilled(v ir.Var) bool {
	return int(v) >= 0 && int(v) < len(p.AutoSpilled) && p.AutoSpilled[v]
}
