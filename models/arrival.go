package models

import "time"

type BusArrival struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Service      string    `gorm:"column:service" json:"service"`
	Bay          string    `gorm:"column:bay" json:"bay"`
	Status       string    `gorm:"column:status" json:"status"`
	ArrivalTime  time.Time `gorm:"column:arrival_time" json:"arrival_time"`
	DayOfWeek    int       `gorm:"column:day_of_week" json:"day_of_week"`
	Temperature  float64   `gorm:"column:temperature" json:"temperature"`
	Weather      string    `gorm:"column:weather" json:"weather"`
	WeekOfYear   int       `gorm:"column:week_of_year" json:"week_of_year"`
	IsSchoolTerm bool      `gorm:"column:is_school_term" json:"is_school_term"`
}

func (BusArrival) TableName() string { return "bus_arrivals" }
