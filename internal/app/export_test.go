package app

func (s *GameService) HeldSubmissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
