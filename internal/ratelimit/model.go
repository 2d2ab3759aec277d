package ratelimit

import "time"

// RequestRecord is one completed API call. The table is append-only apart from
// the retention sweep and is the only source of truth for rate counting.
type RequestRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Endpoint       string    `json:"endpoint" gorm:"not null;index:idx_api_requests_ip_window,priority:1;index:idx_api_requests_user_window,priority:1"`
	Method         string    `json:"method" gorm:"size:10;not null"`
	UserType       string    `json:"user_type,omitempty" gorm:"size:16;index:idx_api_requests_user_window,priority:2"`
	UserID         *uint     `json:"user_id,omitempty" gorm:"index:idx_api_requests_user_window,priority:3"`
	IPAddress      string    `json:"ip_address" gorm:"size:64;index:idx_api_requests_ip_window,priority:2"`
	ResponseCode   int       `json:"response_code"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	RequestTime    time.Time `json:"request_time" gorm:"not null;index;index:idx_api_requests_ip_window,priority:3;index:idx_api_requests_user_window,priority:4"`
}

func (RequestRecord) TableName() string { return "api_requests" }

// Caller identifies who is being counted. Requests are counted per user when
// UserID is set and per IP address otherwise.
type Caller struct {
	IP       string
	UserType string
	UserID   *uint
}
