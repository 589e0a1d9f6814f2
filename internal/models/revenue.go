package models

// RevenueLog is an append-only record of one paid visit. Timestamp is the
// completion time in Unix milliseconds.
type RevenueLog struct {
	ID           string      `json:"id"`
	Amount       float64     `json:"amount"`
	ServiceType  ServiceType `json:"service_type,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	Timestamp    int64       `json:"timestamp"`
}

const PopularServiceNone = "None"

type Stats struct {
	Today                 float64        `json:"today"`
	Weekly                float64        `json:"weekly"`
	Monthly               float64        `json:"monthly"`
	TotalRevenue          float64        `json:"total_revenue"`
	TotalCustomersToday   int            `json:"total_customers_today"`
	TotalCustomersAllTime int            `json:"total_customers_all_time"`
	AverageTicket         float64        `json:"average_ticket"`
	DailyAverageThisMonth float64        `json:"daily_average_this_month"`
	PopularService        string         `json:"popular_service"`
	MonthlyHistory        []MonthSummary `json:"monthly_history"`
	ServiceBreakdown      []ServiceStat  `json:"service_breakdown"`
	RecentDays            []DayBucket    `json:"recent_days"`
	DailyRevenueByMonth   []MonthDays    `json:"daily_revenue_by_month"`
}

type MonthSummary struct {
	MonthStart    int64   `json:"month_start"`
	Revenue       float64 `json:"revenue"`
	Customers     int     `json:"customers"`
	AverageTicket float64 `json:"average_ticket"`
}

type DayBucket struct {
	DayStart  int64   `json:"day_start"`
	Revenue   float64 `json:"revenue"`
	Customers int     `json:"customers"`
}

type ServiceStat struct {
	Service ServiceType `json:"service"`
	Count   int         `json:"count"`
	Revenue float64     `json:"revenue"`
}

type MonthDays struct {
	MonthStart int64       `json:"month_start"`
	Days       []DayBucket `json:"days"`
}
