package models

import (
	"time"

	"hdrEnhancer/pkg/task"
)

const (
	DefaultDailyLimit   = 10
	DefaultMonthlyLimit = 100
)

type Profile struct {
	Username              string
	Email                 string
	EmployeeID            string
	Department            string
	DailyLimit            int
	MonthlyLimit          int
	TotalProcessed        int
	TotalSuccessful       int
	TotalFailed           int
	PreferredOutputFormat task.Format
	PreferredQuality      int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Usage struct {
	Daily   int
	Monthly int
}

func (p *Profile) CanProcessMore(u Usage) bool {
	return u.Daily < p.DailyLimit
}
