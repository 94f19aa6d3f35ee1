package domain

import "time"

type ForecastPoint struct {
	Date              time.Time `json:"date"`
	PredictedQuantity int       `json:"predictedQuantity"`
	LowerBound        int       `json:"lowerBound"`
	UpperBound        int       `json:"upperBound"`
	IsWeekend         bool      `json:"isWeekend"`
	IsFestival        bool      `json:"isFestival"`
	FestivalName      *string   `json:"festivalName"`
}

type Forecast struct {
	ItemID         string          `json:"itemId"`
	Points         []ForecastPoint `json:"forecast"`
	Confidence     float64         `json:"confidence"`
	Recommendation string          `json:"recommendation"`
	Error          string          `json:"error,omitempty"`
}
