package models

// Requests for the feature HTTP endpoints.

type FeaturesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,max=16"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
	Offset int    `query:"offset" json:"offset" validate:"gte=0"`
}
