package db

import "github.com/carpore/carpore-backend/internal/app/model"

func price(v float64) model.Money {
	return model.NewMoneyFromFloat(v)
}

// DefaultCatalog is the launch range of camphor and wood-infused fresheners
func DefaultCatalog() []model.Category {
	return []model.Category{
		{
			ID:          "camphor",
			Name:        "Camphor Air Freshener",
			Description: "Purifying camphor blocks for car and home",
			BasePrice:   price(249),
			ImageKey:    "catalog/camphor.jpg",
			SortOrder:   1,
			Fragrances: []model.Fragrance{
				{ID: "pure-camphor", Name: "Pure Camphor", Price: price(249), Rating: 4.9, ReviewCount: 67, Featured: true,
					Description: "Traditional pure camphor with medicinal properties and refreshing clarity"},
				{ID: "camphor-rose", Name: "Camphor Rose", Price: price(269), Rating: 4.7, ReviewCount: 41,
					Description: "Therapeutic camphor blended with delicate rose essence for floral harmony"},
				{ID: "camphor-jasmine", Name: "Camphor Jasmine", Price: price(279), Rating: 4.8, ReviewCount: 36,
					Description: "Aromatic jasmine flowers combined with purifying camphor base"},
				{ID: "camphor-lavender", Name: "Camphor Lavender", Price: price(259), Rating: 4.9, ReviewCount: 58, Featured: true,
					Description: "Soothing lavender fields meet therapeutic camphor for ultimate relaxation"},
				{ID: "eucalyptus-camphor", Name: "Eucalyptus Camphor", Price: price(289), Rating: 4.8, ReviewCount: 44,
					Description: "Refreshing eucalyptus leaves with purifying camphor for respiratory wellness"},
			},
		},
		{
			ID:          "wood-infused",
			Name:        "Wood Infused Air Freshener",
			Description: "Natural wood diffusers infused with long-lasting oils",
			BasePrice:   price(299),
			ImageKey:    "catalog/wood-infused.jpg",
			SortOrder:   2,
			Fragrances: []model.Fragrance{
				{ID: "sandalwood", Name: "Sandalwood", Price: price(299), Rating: 4.8, ReviewCount: 45, Featured: true,
					Description: "Rich, woody aroma with earthy undertones and a calming presence"},
				{ID: "cedar", Name: "Cedar Wood", Price: price(319), Rating: 4.7, ReviewCount: 38,
					Description: "Fresh cedar scent with natural wood essence and forest-like freshness"},
				{ID: "pine", Name: "Pine Forest", Price: price(289), Rating: 4.9, ReviewCount: 52, Featured: true,
					Description: "Invigorating pine scent reminiscent of deep mountain forests"},
				{ID: "teak", Name: "Teak Wood", Price: price(349), Rating: 4.8, ReviewCount: 29,
					Description: "Luxurious teak fragrance with warm, sophisticated notes"},
				{ID: "bamboo", Name: "Bamboo Fresh", Price: price(279), Rating: 4.6, ReviewCount: 33,
					Description: "Light, refreshing bamboo scent with zen-like tranquility"},
			},
		},
	}
}
