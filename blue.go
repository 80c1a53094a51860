package cobalt

// QueueFull is called when a packet had to be dropped because the queue
// overflowed.
func (v *Vars) QueueFull(p *Params, nowNano uint64) {
	if nowNano-v.blueTimer > p.target {
		v.pDrop = satAddUint32(v.pDrop, p.pInc)
		v.blueTimer = nowNano
	}
	v.dropping = true
	v.dropNext = nowNano
	if v.count == 0 {
		v.count = 1
	}
}

// QueueEmpty is called when the queue was serviced but turned out to be
// empty.
func (v *Vars) QueueEmpty(p *Params, nowNano uint64) {
	if nowNano-v.blueTimer > p.target {
		v.pDrop = satSubUint32(v.pDrop, p.pDec)
		v.blueTimer = nowNano
	}
	v.dropping = false
}
