package command

// Rank is the ordered permission level gating command use.
type Rank int

const (
	// RankBanned users cannot use the bot at all.
	RankBanned Rank = iota - 1
	// RankDefault is assigned to users without a stored record.
	RankDefault
	// RankTrusted users may use commands that would be annoying in the
	// wrong hands.
	RankTrusted
	// RankAdmin users control the bot.
	RankAdmin
	// RankOwner has full control, including rank assignment.
	RankOwner
)

func (r Rank) String() string {
	switch r {
	case RankBanned:
		return "banned"
	case RankDefault:
		return "default"
	case RankTrusted:
		return "trusted"
	case RankAdmin:
		return "admin"
	case RankOwner:
		return "owner"
	}

	return "unknown"
}
