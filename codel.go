package cobalt

// delayControl is the simplified CoDel half of the engine. It returns true if
// pkt is due for a delay action and could not be marked.
func (v *Vars) delayControl(p *Params, nowNano uint64, pkt Packet) bool {
	drop := false

	sojourn := int64(nowNano - pkt.EnqueueTime())
	schedule := int64(nowNano - v.dropNext)
	overTarget := sojourn > 0 && uint64(sojourn) > p.target
	nextDue := v.count != 0 && schedule >= 0

	v.ecnMarked = false

	if overTarget {
		if !v.dropping {
			v.dropping = true
			v.dropNext = nowNano + p.interval
		}
		if v.count == 0 {
			v.count = 1
		}
	} else if v.dropping {
		v.dropping = false
	}

	if nextDue && v.dropping {
		// mark if the packet supports it, otherwise drop
		v.ecnMarked = pkt.SetCE()
		drop = !v.ecnMarked

		v.count = satIncUint32(v.count)
		v.recInvSqrt = refineRecInvSqrt(v.count, v.recInvSqrt)
		v.dropNext = controlLaw(v.dropNext, p.interval, v.recInvSqrt)
		return drop
	}

	// stale schedule from an earlier dropping episode, back off the count
	// until the schedule lies in the future again
	for nextDue {
		v.count--
		v.recInvSqrt = refineRecInvSqrt(v.count, v.recInvSqrt)
		v.dropNext = controlLaw(v.dropNext, p.interval, v.recInvSqrt)
		schedule = int64(nowNano - v.dropNext)
		nextDue = v.count != 0 && schedule >= 0
	}

	return drop
}
