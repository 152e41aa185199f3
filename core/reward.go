package core

// Reward hook: harvesters apply a configurable reward function at
// certificate-formation time. The 30/30/40 proposer/validator/reserve
// split below is a replaceable default, not a protocol constant.

// ConvergenceRound carries everything a RewardFunc needs to compute
// credits for a certified convergence round: the proposer of each merged
// proposal and the farmers who cast valid votes.
type ConvergenceRound struct {
	BlockHash  Hash
	Proposers  []Address
	Validators []Address
	TotalFee   uint64
}

// RewardFunc computes per-address credit deltas for a certified
// convergence round, applied by the harvester at certificate-formation
// time.
type RewardFunc func(round ConvergenceRound) map[Address]uint64

// DefaultRewardSplit is the proposer / validator / reserve fractions,
// out of 100.
type DefaultRewardSplit struct {
	ProposerPct  uint64
	ValidatorPct uint64
	ReservePct   uint64
}

// DefaultSplit is the 30/30/40 default.
var DefaultSplit = DefaultRewardSplit{ProposerPct: 30, ValidatorPct: 30, ReservePct: 40}

// NewDefaultRewardFunc builds a RewardFunc that splits round.TotalFee
// across proposers and validators per split, distributing each share
// evenly among that group's addresses. The reserve share is not assigned
// to any account (left for the pluggable configuration to direct
// elsewhere); this core only returns assignable credits.
func NewDefaultRewardFunc(split DefaultRewardSplit) RewardFunc {
	return func(round ConvergenceRound) map[Address]uint64 {
		out := make(map[Address]uint64)
		if round.TotalFee == 0 {
			return out
		}
		proposerPool := round.TotalFee * split.ProposerPct / 100
		validatorPool := round.TotalFee * split.ValidatorPct / 100

		if len(round.Proposers) > 0 {
			share := proposerPool / uint64(len(round.Proposers))
			for _, addr := range round.Proposers {
				out[addr] = saturatingAdd(out[addr], share)
			}
		}
		if len(round.Validators) > 0 {
			share := validatorPool / uint64(len(round.Validators))
			for _, addr := range round.Validators {
				out[addr] = saturatingAdd(out[addr], share)
			}
		}
		return out
	}
}
