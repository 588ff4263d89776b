package service

import "time"

func (s *CheckoutService) SetClock(now func() time.Time)     { s.now = now }
func (s *ReviewService) SetClock(now func() time.Time)       { s.now = now }
func (s *NotificationService) SetClock(now func() time.Time) { s.now = now }
func (s *AccountService) SetClock(now func() time.Time)      { s.now = now }
