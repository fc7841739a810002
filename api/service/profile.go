package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hdrEnhancer/api/auth"
	"hdrEnhancer/api/dto"
	"hdrEnhancer/api/models"
	"hdrEnhancer/api/repository"
)

const recentTasksLimit = 5

type ProfileService struct {
	profiles repository.ProfileRepository
	tasks    repository.Repository
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewProfileService(profiles repository.ProfileRepository, tasks repository.Repository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		tasks:    tasks,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, id auth.Identity) (*dto.ProfileResponse, error) {
	profile, err := s.profiles.GetOrCreateProfile(ctx, profileSeed(id))
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	usage, err := s.profiles.CountUsage(ctx, id.Username, s.now())
	if err != nil {
		return nil, fmt.Errorf("count usage: %w", err)
	}

	recent, err := s.tasks.ListTasks(ctx, id.Username, recentTasksLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("list recent tasks: %w", err)
	}

	groups := id.Groups
	if groups == nil {
		groups = []string{}
	}

	return &dto.ProfileResponse{
		User: dto.UserInfo{
			Username:   profile.Username,
			Email:      profile.Email,
			EmployeeID: profile.EmployeeID,
			Department: profile.Department,
			Groups:     groups,
		},
		Preferences: preferences(profile),
		Usage: dto.UsageStats{
			DailyUsage:      usage.Daily,
			DailyLimit:      profile.DailyLimit,
			MonthlyUsage:    usage.Monthly,
			MonthlyLimit:    profile.MonthlyLimit,
			CanProcessMore:  profile.CanProcessMore(usage),
			TotalProcessed:  profile.TotalProcessed,
			TotalSuccessful: profile.TotalSuccessful,
			TotalFailed:     profile.TotalFailed,
		},
		RecentTasks: toResponses(recent),
	}, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, id auth.Identity, req *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error) {
	if req.PreferredOutputFormat != nil {
		normalized := strings.ToLower(strings.TrimSpace(*req.PreferredOutputFormat))
		req.PreferredOutputFormat = &normalized
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if _, err := s.profiles.GetOrCreateProfile(ctx, profileSeed(id)); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	profile, err := s.profiles.UpdatePreferences(ctx, id.Username, req.PreferredOutputFormat, req.PreferredQuality)
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}

	s.logger.Info("Profile preferences updated",
		zap.String("user", id.Username),
		zap.String("format", string(profile.PreferredOutputFormat)),
		zap.Int("quality", profile.PreferredQuality),
	)

	return &dto.UpdateProfileResponse{
		Success:     true,
		Preferences: preferences(profile),
	}, nil
}

func preferences(p *models.Profile) dto.Preferences {
	return dto.Preferences{
		OutputFormat: string(p.PreferredOutputFormat),
		Quality:      p.PreferredQuality,
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", dto.ErrValidation, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "PreferredOutputFormat":
			fields = append(fields, "preferred_output_format must be one of jpeg, png, tiff")
		case "PreferredQuality":
			fields = append(fields, "preferred_quality must be between 1 and 100")
		default:
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", dto.ErrValidation, strings.Join(fields, "; "))
}
