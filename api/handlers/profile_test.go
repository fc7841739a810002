package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"hdrEnhancer/api/auth"
	"hdrEnhancer/api/dto"
)

type stubProfileService struct {
	getFunc    func(ctx context.Context, id auth.Identity) (*dto.ProfileResponse, error)
	updateFunc func(ctx context.Context, id auth.Identity, req *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error)
}

func (s *stubProfileService) GetProfile(ctx context.Context, id auth.Identity) (*dto.ProfileResponse, error) {
	return s.getFunc(ctx, id)
}

func (s *stubProfileService) UpdateProfile(ctx context.Context, id auth.Identity, req *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error) {
	return s.updateFunc(ctx, id, req)
}

func withIdentity(r *http.Request, username string) *http.Request {
	return r.WithContext(auth.NewContext(r.Context(), auth.Identity{Username: username}))
}

func TestProfileHandler_Get(t *testing.T) {
	svc := &stubProfileService{
		getFunc: func(_ context.Context, id auth.Identity) (*dto.ProfileResponse, error) {
			return &dto.ProfileResponse{
				User:        dto.UserInfo{Username: id.Username, Groups: []string{}},
				Preferences: dto.Preferences{OutputFormat: "jpeg", Quality: 95},
				Usage:       dto.UsageStats{DailyUsage: 3, DailyLimit: 10, CanProcessMore: true},
			}, nil
		},
	}
	handler := NewProfileHandler(svc, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	handler.Get(rec, withIdentity(httptest.NewRequest("GET", "/profile", nil), "alice"))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp dto.ProfileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.User.Username != "alice" || resp.Usage.DailyUsage != 3 || !resp.Usage.CanProcessMore {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestProfileHandler_Get_Unauthenticated(t *testing.T) {
	handler := NewProfileHandler(&stubProfileService{}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	handler.Get(rec, httptest.NewRequest("GET", "/profile", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestProfileHandler_Update(t *testing.T) {
	var got *dto.UpdateProfileRequest
	svc := &stubProfileService{
		updateFunc: func(_ context.Context, _ auth.Identity, req *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error) {
			got = req
			return &dto.UpdateProfileResponse{
				Success:     true,
				Preferences: dto.Preferences{OutputFormat: *req.PreferredOutputFormat, Quality: 95},
			}, nil
		},
	}
	handler := NewProfileHandler(svc, zaptest.NewLogger(t))

	req := httptest.NewRequest("PUT", "/profile", strings.NewReader(`{"preferred_output_format":"png"}`))
	rec := httptest.NewRecorder()
	handler.Update(rec, withIdentity(req, "alice"))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got == nil || got.PreferredOutputFormat == nil || *got.PreferredOutputFormat != "png" {
		t.Errorf("Unexpected update request %+v", got)
	}
	if got.PreferredQuality != nil {
		t.Errorf("Expected quality to be left unset, got %d", *got.PreferredQuality)
	}
}

func TestProfileHandler_Update_Errors(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"malformed json", `{"preferred_quality":`, nil, http.StatusBadRequest},
		{"unknown field", `{"theme":"dark"}`, nil, http.StatusBadRequest},
		{"invalid value", `{"preferred_quality":0}`, fmt.Errorf("%w: preferred_quality", dto.ErrValidation), http.StatusBadRequest},
		{"store failure", `{"preferred_quality":80}`, fmt.Errorf("update preferences: connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			svc := &stubProfileService{
				updateFunc: func(context.Context, auth.Identity, *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error) {
					calls++
					return nil, tc.err
				},
			}
			handler := NewProfileHandler(svc, zaptest.NewLogger(t))

			rec := httptest.NewRecorder()
			handler.Update(rec, withIdentity(httptest.NewRequest("PUT", "/profile", strings.NewReader(tc.body)), "alice"))

			if rec.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.err == nil && calls != 0 {
				t.Error("Service must not be called for undecodable bodies")
			}
		})
	}
}
