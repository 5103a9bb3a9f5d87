package stream

import "github.com/quipay/quipay/internal/money"

// Vested returns the value accrued by the given instant. It is the single
// source of truth for accrual:
//
//   - nothing vests strictly before the cliff; once the cliff passes,
//     accrual is retroactive to the start (the cliff gates, it does not
//     shift the accrual clock)
//   - between start and end, accrual is linear with floor division
//   - a closed stream freezes at its closure instant and never accrues
//     further
func Vested(s Stream, at int64) int64 {
	if s.Closed() && at > s.ClosedAt {
		at = s.ClosedAt
	}

	cliff := s.CliffTime
	if cliff == 0 {
		cliff = s.StartTime
	}
	if at < cliff {
		return 0
	}
	if at <= s.StartTime {
		return 0
	}
	if at >= s.EndTime {
		return s.TotalAmount
	}
	return money.Prorata(s.TotalAmount, at-s.StartTime, s.EndTime-s.StartTime)
}
