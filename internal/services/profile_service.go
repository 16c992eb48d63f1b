package services

import (
	"context"
	"errors"

	"github.com/tailorjob/backend/internal/models"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/utils"
)

// Me is the signed-in user's profile with the effective plan.
type Me struct {
	Profile      *models.Profile   `json:"profile"`
	Subscription *SubscriptionInfo `json:"subscription"`
}

type ProfileService interface {
	GetMe(ctx context.Context, userID string) (*Me, error)
}

type profileService struct {
	profiles pgrepo.ProfileRepository
	subs     SubscriptionService
}

func NewProfileService(profiles pgrepo.ProfileRepository, subs SubscriptionService) ProfileService {
	return &profileService{profiles: profiles, subs: subs}
}

func (s *profileService) GetMe(ctx context.Context, userID string) (*Me, error) {
	const op = "ProfileService.GetMe"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}

	info, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Me{Profile: p, Subscription: info}, nil
}
