package processor

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

const (
	DefaultForecastDays = 14
	MaxForecastDays     = 90

	minTrendHistory        = 7
	stableHistory          = 14
	dailyVariation         = 0.15
	weekendMultiplier      = 1.2
	festivalMultiplier     = 1.5
	lowerBoundFactor       = 0.7
	upperBoundFactor       = 1.3
	lowDemandPerDay        = 5.0
	highDemandPerDay       = 20.0
	minConfidence          = 0.5
	maxConfidence          = 0.95
	shortHistoryConfidence = 0.7
)

var (
	lowDemandStock      = decimal.RequireFromString("1.2")
	highDemandStock     = decimal.RequireFromString("1.3")
	moderateDemandStock = decimal.RequireFromString("1.1")
)

// festivalWindow is a fixed calendar range. Lunar festivals drift year to
// year; these windows are an accepted approximation.
type festivalWindow struct {
	Name    string
	Month   time.Month
	FromDay int
	ToDay   int
}

var festivals = []festivalWindow{
	{Name: "Holi", Month: time.March, FromDay: 8, ToDay: 10},
	{Name: "Diwali", Month: time.October, FromDay: 20, ToDay: 25},
	{Name: "Independence Day", Month: time.August, FromDay: 15, ToDay: 16},
	{Name: "Republic Day", Month: time.January, FromDay: 26, ToDay: 27},
}

type DemandForecaster struct {
	clock Clock
	rnd   RandomSource
}

func NewDemandForecaster(clock Clock, rnd RandomSource) *DemandForecaster {
	if clock == nil {
		clock = SystemClock{}
	}
	if rnd == nil {
		rnd = NewRandomSource()
	}
	return &DemandForecaster{clock: clock, rnd: rnd}
}

// Forecast projects daily demand for the next days. Short histories fall back
// to a flat average; longer ones follow a least-squares trend adjusted for
// weekends and festivals.
func (f *DemandForecaster) Forecast(itemID string, history []domain.SalePoint, days int) domain.Forecast {
	days = NormalizeForecastDays(days)
	quantities := make([]float64, len(history))
	for i, p := range history {
		quantities[i] = p.Quantity
	}

	var points []domain.ForecastPoint
	if len(quantities) < minTrendHistory {
		points = f.flatForecast(quantities, days)
	} else {
		points = f.trendForecast(quantities, days)
	}

	return domain.Forecast{
		ItemID:         itemID,
		Points:         points,
		Confidence:     Confidence(quantities),
		Recommendation: Recommend(points),
	}
}

func NormalizeForecastDays(days int) int {
	if days <= 0 {
		return DefaultForecastDays
	}
	return min(days, MaxForecastDays)
}

func (f *DemandForecaster) flatForecast(quantities []float64, days int) []domain.ForecastPoint {
	avg := mean(quantities)
	start := truncateToDay(f.clock.Now())

	points := make([]domain.ForecastPoint, 0, days)
	for i := 1; i <= days; i++ {
		point := newForecastPoint(start.AddDate(0, 0, i))
		point.PredictedQuantity = int(math.Floor(avg))
		point.LowerBound = int(math.Floor(avg * lowerBoundFactor))
		point.UpperBound = int(math.Floor(avg * upperBoundFactor))
		points = append(points, point)
	}
	return points
}

func (f *DemandForecaster) trendForecast(quantities []float64, days int) []domain.ForecastPoint {
	n := len(quantities)
	avg := mean(quantities)
	slope := trendSlope(quantities)
	start := truncateToDay(f.clock.Now())

	points := make([]domain.ForecastPoint, 0, days)
	for i := 1; i <= days; i++ {
		point := newForecastPoint(start.AddDate(0, 0, i))

		predicted := avg + slope*float64(n+i)
		predicted *= 1 + (f.rnd.Float64()*2-1)*dailyVariation
		switch {
		case point.IsFestival:
			predicted *= festivalMultiplier
		case point.IsWeekend:
			predicted *= weekendMultiplier
		}
		predicted = math.Max(1, predicted)

		point.PredictedQuantity = int(math.Floor(predicted))
		point.LowerBound = max(0, int(math.Round(predicted*lowerBoundFactor)))
		point.UpperBound = int(math.Round(predicted * upperBoundFactor))
		points = append(points, point)
	}
	return points
}

func newForecastPoint(date time.Time) domain.ForecastPoint {
	point := domain.ForecastPoint{
		Date:      date,
		IsWeekend: date.Weekday() == time.Saturday || date.Weekday() == time.Sunday,
	}
	if name, ok := FestivalOn(date); ok {
		point.IsFestival = true
		point.FestivalName = &name
	}
	return point
}

func FestivalOn(date time.Time) (string, bool) {
	for _, w := range festivals {
		if date.Month() == w.Month && date.Day() >= w.FromDay && date.Day() <= w.ToDay {
			return w.Name, true
		}
	}
	return "", false
}

// Confidence grows with history length and shrinks with dispersion.
func Confidence(quantities []float64) float64 {
	switch {
	case len(quantities) < minTrendHistory:
		return minConfidence
	case len(quantities) < stableHistory:
		return shortHistoryConfidence
	}

	avg := mean(quantities)
	if avg == 0 {
		return minConfidence
	}
	cv := stddev(quantities, avg) / avg
	confidence := math.Max(minConfidence, math.Min(maxConfidence, 1-cv/2))
	return math.Round(confidence*100) / 100
}

func Recommend(points []domain.ForecastPoint) string {
	if len(points) == 0 {
		return "Insufficient data for recommendation"
	}

	total := 0
	for _, p := range points {
		total += p.PredictedQuantity
	}
	if total == 0 {
		return "Insufficient sales history. Record daily sales to get a stocking recommendation."
	}

	perDay := float64(total) / float64(len(points))
	totalDec := decimal.NewFromInt(int64(total))
	switch {
	case perDay < lowDemandPerDay:
		return fmt.Sprintf("Low demand expected. Stock %d units for next %d days.",
			totalDec.Mul(lowDemandStock).IntPart(), len(points))
	case perDay > highDemandPerDay:
		return fmt.Sprintf("High demand expected. Stock %d units to avoid stock-outs.",
			totalDec.Mul(highDemandStock).IntPart())
	default:
		return fmt.Sprintf("Moderate demand. Stock %d units for next %d days.",
			totalDec.Mul(moderateDemandStock).IntPart(), len(points))
	}
}

func trendSlope(ys []float64) float64 {
	n := float64(len(ys))
	xMean := (n - 1) / 2
	yMean := mean(ys)

	var cov, variance float64
	for i, y := range ys {
		dx := float64(i) - xMean
		cov += dx * (y - yMean)
		variance += dx * dx
	}
	if variance == 0 {
		return 0
	}
	return cov / variance
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64, avg float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += (x - avg) * (x - avg)
	}
	return math.Sqrt(sum / float64(len(xs)))
}
