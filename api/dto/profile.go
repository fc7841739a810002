package dto

type UpdateProfileRequest struct {
	PreferredOutputFormat *string `json:"preferred_output_format" validate:"omitempty,oneof=jpeg png tiff"`
	PreferredQuality      *int    `json:"preferred_quality" validate:"omitempty,min=1,max=100"`
}

type UserInfo struct {
	Username   string   `json:"username"`
	Email      string   `json:"email,omitempty"`
	EmployeeID string   `json:"employee_id,omitempty"`
	Department string   `json:"department,omitempty"`
	Groups     []string `json:"groups"`
}

type Preferences struct {
	OutputFormat string `json:"preferred_output_format"`
	Quality      int    `json:"preferred_quality"`
}

type UsageStats struct {
	DailyUsage      int  `json:"daily_usage"`
	DailyLimit      int  `json:"daily_limit"`
	MonthlyUsage    int  `json:"monthly_usage"`
	MonthlyLimit    int  `json:"monthly_limit"`
	CanProcessMore  bool `json:"can_process_more"`
	TotalProcessed  int  `json:"total_processed"`
	TotalSuccessful int  `json:"total_successful"`
	TotalFailed     int  `json:"total_failed"`
}

type ProfileResponse struct {
	User        UserInfo       `json:"user"`
	Preferences Preferences    `json:"preferences"`
	Usage       UsageStats     `json:"usage"`
	RecentTasks []TaskResponse `json:"recent_tasks"`
}

type UpdateProfileResponse struct {
	Success     bool        `json:"success"`
	Preferences Preferences `json:"preferences"`
}
