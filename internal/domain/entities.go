package domain

import (
	"time"
)

// Vehicle status values.
const (
	VehicleActive   = "active"
	VehicleInactive = "inactive"
)

// Vehicle is a fleet vehicle that fuel cards are tied to.
type Vehicle struct {
	ID                 string    `json:"id"`
	CompanyID          string    `json:"companyId,omitempty"`
	Type               string    `json:"type"`
	TankCapacityLiters float64   `json:"tankCapacityLiters"`
	RegNumber          string    `json:"regNumber"`
	AssignedProjectID  string    `json:"assignedProjectId,omitempty"`
	Status             string    `json:"status"` // "active" or "inactive"
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Project is a work site with a circular geofence around its center.
type Project struct {
	ID               string    `json:"id"`
	CompanyID        string    `json:"companyId,omitempty"`
	Name             string    `json:"name"`
	GeofenceLat      float64   `json:"geofenceLat"`
	GeofenceLon      float64   `json:"geofenceLon"`
	GeofenceRadiusKm float64   `json:"geofenceRadiusKm"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Worker is a driver with scheduled working hours in "HH:MM" form.
type Worker struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"companyId,omitempty"`
	Name          string    `json:"name"`
	ScheduleStart string    `json:"scheduleStart"`
	ScheduleEnd   string    `json:"scheduleEnd"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
