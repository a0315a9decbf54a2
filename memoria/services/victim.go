package services

// SelectVictim recorre los marcos de usuario con un reloj: un marco con el bit
// de referencia prendido se salva una vez y se le apaga el bit. Al encontrar
// un candidato lo marca busy en el coremap y confirma con el dueño, sin
// esperar su lock, que la página sigue residente y no está en transición.
// Devuelve false si dio dos vueltas sin encontrar víctima.
func (s *SwapStore) SelectVictim() (uint32, bool) {
	cm := s.vm.coremap
	span := len(cm.entries) - cm.userBase

	for scanned := 0; scanned < 2*span; scanned++ {
		cm.mu.Lock()
		frame := cm.hand
		cm.hand++
		if cm.hand >= len(cm.entries) {
			cm.hand = cm.userBase
		}

		e := &cm.entries[frame]
		if !e.Allocated || !e.User || e.Busy || e.Owner == nil {
			cm.mu.Unlock()
			continue
		}
		if cm.referenced.Test(uint(frame)) {
			cm.referenced.Clear(uint(frame))
			cm.mu.Unlock()
			continue
		}
		e.Busy = true
		owner, ref := e.Owner, e.Page
		cm.mu.Unlock()

		if owner.claimForEviction(ref, uint32(frame)) {
			return uint32(frame), true
		}
		cm.clearBusy(uint32(frame))
	}
	return 0, false
}
