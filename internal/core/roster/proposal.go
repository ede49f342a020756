package roster

import (
	"context"
	"sync"
)

type moveStep struct {
	assign  *AssignInput
	reorder *ReorderInput
}

// Proposal はドラッグ操作中の配属変更を作業用の複製に適用して保持します。
// CommitMove で確定するまで正本のスナップショットには反映されません。
type Proposal struct {
	mu      sync.Mutex
	actor   Actor
	clock   Clock
	scratch *Snapshot
	steps   []moveStep
	closed  bool
}

// BeginMove は新しい移動提案を開始します。
func (s *Service) BeginMove(_ context.Context, actor Actor) (*Proposal, error) {
	if err := actor.canMutate(); err != nil {
		return nil, err
	}
	return &Proposal{actor: actor, clock: s.clock, scratch: s.store.Snapshot()}, nil
}

// Assign は作業用の複製上で配属変更を試行します。
func (p *Proposal) Assign(in AssignInput) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProposalClosed
	}

	next := p.scratch.Clone()
	changed, err := applyAssign(next, p.actor, in, p.clock.Now())
	if err != nil || !changed {
		return err
	}
	if err := Validate(next); err != nil {
		return err
	}
	p.scratch = next
	p.steps = append(p.steps, moveStep{assign: &in})
	return nil
}

// Reorder は作業用の複製上で名簿の並べ替えを試行します。
func (p *Proposal) Reorder(in ReorderInput) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProposalClosed
	}

	next := p.scratch.Clone()
	changed, err := applyReorder(next, p.actor, in)
	if err != nil || !changed {
		return err
	}
	if err := Validate(next); err != nil {
		return err
	}
	p.scratch = next
	p.steps = append(p.steps, moveStep{reorder: &in})
	return nil
}

// Preview は提案適用後の作業用スナップショットの複製を返します。
func (p *Proposal) Preview() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scratch.Clone()
}

// Steps は記録済みの手順数を返します。
func (p *Proposal) Steps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps)
}

// Cancel は提案を破棄します。正本のスナップショットは変更されません。
func (p *Proposal) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.scratch = nil
	p.steps = nil
}

// CommitMove は提案の手順を正本のスナップショットへ一括で再適用します。
// いずれかの手順が失敗した場合は何も反映されません。
func (s *Service) CommitMove(_ context.Context, p *Proposal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrProposalClosed
	}

	now := s.clock.Now()
	err := s.mutate("commit_move", func(snap *Snapshot) (bool, error) {
		changed := false
		for _, step := range p.steps {
			var (
				stepChanged bool
				err         error
			)
			switch {
			case step.assign != nil:
				stepChanged, err = applyAssign(snap, p.actor, *step.assign, now)
			case step.reorder != nil:
				stepChanged, err = applyReorder(snap, p.actor, *step.reorder)
			}
			if err != nil {
				return false, err
			}
			changed = changed || stepChanged
		}
		return changed, nil
	})
	if err != nil {
		return err
	}

	p.closed = true
	p.scratch = nil
	p.steps = nil
	return nil
}
