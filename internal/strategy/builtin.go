package strategy

// RegisterBuiltins adds the four shipped strategy implementations to reg.
// Called once at startup from main.
func RegisterBuiltins(reg *Registry) {
	reg.Register(&DualMaCrossover{}, NewDualMaCrossover)
	reg.Register(&LotteryTicket{}, NewLotteryTicket)
	reg.Register(&AdvancedMartingale{}, NewAdvancedMartingale)
	reg.Register(&OneClickGrid{}, NewOneClickGrid)
}
