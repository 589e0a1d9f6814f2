// Package analytics turns the revenue log into dashboard figures. Every
// calendar boundary is taken in the location of the supplied now.
package analytics

import (
	"sort"
	"time"

	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

const RecentDaysWindow = 14

type serviceAcc struct {
	count   int
	revenue float64
}

// ComputeStats is total: any log slice, including nil, yields a Stats value.
func ComputeStats(logs []models.RevenueLog, now time.Time) models.Stats {
	loc := now.Location()
	startOfToday := util.StartOfDay(now).UnixMilli()
	startOfWeek := util.StartOfWeek(now).UnixMilli()
	startOfMonth := util.StartOfMonth(now).UnixMilli()

	var (
		st          models.Stats
		services    = map[models.ServiceType]*serviceAcc{}
		serviceSeen []models.ServiceType
		months      = map[int64]*models.MonthSummary{}
		days        = map[int64]*models.DayBucket{}
		monthDays   = map[int64]map[int64]*models.DayBucket{}
	)

	for _, log := range logs {
		st.TotalRevenue += log.Amount

		if log.Timestamp >= startOfToday {
			st.Today += log.Amount
			st.TotalCustomersToday++
		}
		if log.Timestamp >= startOfWeek {
			st.Weekly += log.Amount
		}
		if log.Timestamp >= startOfMonth {
			st.Monthly += log.Amount
		}

		at := util.UnixMilli(log.Timestamp, loc)
		monthStart := util.StartOfMonth(at).UnixMilli()
		dayStart := util.StartOfDay(at).UnixMilli()

		m, ok := months[monthStart]
		if !ok {
			m = &models.MonthSummary{MonthStart: monthStart}
			months[monthStart] = m
		}
		m.Revenue += log.Amount
		m.Customers++

		d, ok := days[dayStart]
		if !ok {
			d = &models.DayBucket{DayStart: dayStart}
			days[dayStart] = d
		}
		d.Revenue += log.Amount
		d.Customers++

		md, ok := monthDays[monthStart]
		if !ok {
			md = map[int64]*models.DayBucket{}
			monthDays[monthStart] = md
		}
		mdd, ok := md[dayStart]
		if !ok {
			mdd = &models.DayBucket{DayStart: dayStart}
			md[dayStart] = mdd
		}
		mdd.Revenue += log.Amount
		mdd.Customers++

		if log.ServiceType != "" {
			acc, ok := services[log.ServiceType]
			if !ok {
				acc = &serviceAcc{}
				services[log.ServiceType] = acc
				serviceSeen = append(serviceSeen, log.ServiceType)
			}
			acc.count++
			acc.revenue += log.Amount
		}
	}

	st.TotalCustomersAllTime = len(logs)
	if st.TotalCustomersAllTime > 0 {
		st.AverageTicket = st.TotalRevenue / float64(st.TotalCustomersAllTime)
	}
	st.DailyAverageThisMonth = st.Monthly / float64(now.Day())

	// first-encountered wins a tie
	st.PopularService = models.PopularServiceNone
	maxCount := 0
	for _, svc := range serviceSeen {
		if c := services[svc].count; c > maxCount {
			maxCount = c
			st.PopularService = string(svc)
		}
	}

	st.ServiceBreakdown = make([]models.ServiceStat, 0, len(serviceSeen))
	for _, svc := range serviceSeen {
		acc := services[svc]
		st.ServiceBreakdown = append(st.ServiceBreakdown, models.ServiceStat{
			Service: svc,
			Count:   acc.count,
			Revenue: acc.revenue,
		})
	}
	sort.SliceStable(st.ServiceBreakdown, func(i, j int) bool {
		return st.ServiceBreakdown[i].Count > st.ServiceBreakdown[j].Count
	})

	st.MonthlyHistory = make([]models.MonthSummary, 0, len(months))
	for _, m := range months {
		if m.Customers > 0 {
			m.AverageTicket = m.Revenue / float64(m.Customers)
		}
		st.MonthlyHistory = append(st.MonthlyHistory, *m)
	}
	sort.Slice(st.MonthlyHistory, func(i, j int) bool {
		return st.MonthlyHistory[i].MonthStart < st.MonthlyHistory[j].MonthStart
	})

	st.DailyRevenueByMonth = make([]models.MonthDays, 0, len(monthDays))
	for monthStart, md := range monthDays {
		buckets := make([]models.DayBucket, 0, len(md))
		for _, d := range md {
			buckets = append(buckets, *d)
		}
		sort.Slice(buckets, func(i, j int) bool { return buckets[i].DayStart < buckets[j].DayStart })
		st.DailyRevenueByMonth = append(st.DailyRevenueByMonth, models.MonthDays{MonthStart: monthStart, Days: buckets})
	}
	sort.Slice(st.DailyRevenueByMonth, func(i, j int) bool {
		return st.DailyRevenueByMonth[i].MonthStart < st.DailyRevenueByMonth[j].MonthStart
	})

	st.RecentDays = make([]models.DayBucket, RecentDaysWindow)
	y, mo, dd := now.Date()
	for i := range st.RecentDays {
		offset := RecentDaysWindow - 1 - i
		dayStart := time.Date(y, mo, dd-offset, 0, 0, 0, 0, loc).UnixMilli()
		bucket := models.DayBucket{DayStart: dayStart}
		if found, ok := days[dayStart]; ok {
			bucket = *found
		}
		st.RecentDays[i] = bucket
	}

	return st
}

// DenseMonth expands the sparse per-day buckets of the month starting at
// monthStart into one bucket per calendar day, zero-filled.
func DenseMonth(st models.Stats, monthStart time.Time) []models.DayBucket {
	monthStart = util.StartOfMonth(monthStart)
	key := monthStart.UnixMilli()

	present := map[int64]models.DayBucket{}
	for _, md := range st.DailyRevenueByMonth {
		if md.MonthStart != key {
			continue
		}
		for _, d := range md.Days {
			present[d.DayStart] = d
		}
	}

	n := util.DaysInMonth(monthStart)
	out := make([]models.DayBucket, n)
	y, m, _ := monthStart.Date()
	for i := 0; i < n; i++ {
		dayStart := time.Date(y, m, i+1, 0, 0, 0, 0, monthStart.Location()).UnixMilli()
		if d, ok := present[dayStart]; ok {
			out[i] = d
			continue
		}
		out[i] = models.DayBucket{DayStart: dayStart}
	}
	return out
}
