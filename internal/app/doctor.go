package app

import (
	"context"

	"vibe/internal/doctor"
)

func (s *Service) RunDoctor(ctx context.Context) doctor.Report {
	return s.Doctor.Run(ctx)
}
