package orderflow

// Settings controls how the converter synthesizes order-flow entries.
type Settings struct {
	// MaxDepth is how many price levels a side may hold before the
	// worst synthetic quote gets cancelled.
	MaxDepth int

	// SpreadSize is the spread width, in price steps, used when resting
	// orders are generated around a trade.
	SpreadSize int

	// VolumeMultiplier substitutes the volume step when a security
	// definition has not provided one yet.
	VolumeMultiplier int

	// IncreaseDepthVolume deepens the opposite side when a user order
	// asks for more volume than the book shows.
	IncreaseDepthVolume bool

	// MatchProbability is the chance that shrinking the top of the book
	// is treated as a partial self-match producing a tick.
	MatchProbability float64

	// VolumeMin and VolumeMax bound the random volume assigned to
	// entries generated without an explicit size, [VolumeMin, VolumeMax).
	VolumeMin int
	VolumeMax int
}

func DefaultSettings() Settings {
	return Settings{
		MaxDepth:         100,
		SpreadSize:       2,
		VolumeMultiplier: 2,
		MatchProbability: 0.5,
		VolumeMin:        10,
		VolumeMax:        100,
	}
}

func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.MaxDepth <= 0 {
		s.MaxDepth = def.MaxDepth
	}
	if s.SpreadSize <= 0 {
		s.SpreadSize = def.SpreadSize
	}
	if s.VolumeMultiplier <= 0 {
		s.VolumeMultiplier = def.VolumeMultiplier
	}
	if s.MatchProbability < 0 || s.MatchProbability > 1 {
		s.MatchProbability = def.MatchProbability
	}
	if s.VolumeMin <= 0 {
		s.VolumeMin = def.VolumeMin
	}
	if s.VolumeMax <= s.VolumeMin {
		s.VolumeMax = s.VolumeMin + (def.VolumeMax - def.VolumeMin)
	}
	return s
}
