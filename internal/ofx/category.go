package ofx

import (
	"strings"

	"github.com/Veraticus/cardwise/internal/model"
)

// CategoryOther is assigned when neither the merchant code nor the name
// identifies a category.
const CategoryOther = "Other"

type mccRange struct {
	category string
	lo, hi   int
}

// Merchant category code ranges, as carried in the OFX SIC element by card
// issuers.
var mccRanges = []mccRange{
	{lo: 3000, hi: 3350, category: model.CategoryTravel},
	{lo: 3351, hi: 3500, category: model.CategoryTravel},
	{lo: 3501, hi: 3999, category: model.CategoryHotels},
	{lo: 4011, hi: 4131, category: model.CategoryTravel},
	{lo: 4214, hi: 4215, category: model.CategoryShipping},
	{lo: 4411, hi: 4582, category: model.CategoryTravel},
	{lo: 4722, hi: 4789, category: model.CategoryTravel},
	{lo: 4812, hi: 4816, category: model.CategoryUtilities},
	{lo: 4821, hi: 4821, category: model.CategoryUtilities},
	{lo: 4899, hi: 4900, category: model.CategoryUtilities},
	{lo: 5021, hi: 5021, category: model.CategoryOffice},
	{lo: 5044, hi: 5044, category: model.CategoryOffice},
	{lo: 5045, hi: 5045, category: model.CategoryTechnology},
	{lo: 5111, hi: 5111, category: model.CategoryOffice},
	{lo: 5734, hi: 5734, category: model.CategoryTechnology},
	{lo: 5812, hi: 5814, category: model.CategoryRestaurants},
	{lo: 5943, hi: 5943, category: model.CategoryOffice},
	{lo: 7011, hi: 7011, category: model.CategoryHotels},
	{lo: 7311, hi: 7311, category: model.CategoryMarketing},
	{lo: 7333, hi: 7338, category: model.CategoryMarketing},
	{lo: 7361, hi: 7361, category: model.CategoryProfessional},
	{lo: 7372, hi: 7379, category: model.CategoryTechnology},
	{lo: 7392, hi: 7392, category: model.CategoryProfessional},
	{lo: 7512, hi: 7519, category: model.CategoryTravel},
	{lo: 8111, hi: 8111, category: model.CategoryProfessional},
	{lo: 8931, hi: 8999, category: model.CategoryProfessional},
	{lo: 9402, hi: 9402, category: model.CategoryShipping},
}

var nameKeywords = []struct {
	category string
	keywords []string
}{
	{category: model.CategoryHotels, keywords: []string{"HOTEL", "MARRIOTT", "HILTON", "HYATT", "INN ", "RESORT"}},
	{category: model.CategoryTravel, keywords: []string{"AIRLINE", "AIRWAYS", "UBER", "LYFT", "AMTRAK", "RENTAL CAR", "HERTZ", "TAXI"}},
	{category: model.CategoryShipping, keywords: []string{"FEDEX", "UPS ", "DHL", "USPS", "FREIGHT"}},
	{category: model.CategoryRestaurants, keywords: []string{"RESTAURANT", "CAFE", "COFFEE", "GRILL", "PIZZA", "STARBUCKS"}},
	{category: model.CategoryOffice, keywords: []string{"STAPLES", "OFFICE DEPOT", "OFFICEMAX"}},
	{category: model.CategoryTechnology, keywords: []string{"AWS", "GOOGLE", "MICROSOFT", "ADOBE", "GITHUB", "SOFTWARE"}},
	{category: model.CategoryMarketing, keywords: []string{"ADS", "MARKETING", "LINKEDIN", "FACEBK"}},
	{category: model.CategoryUtilities, keywords: []string{"ELECTRIC", "COMCAST", "VERIZON", "AT&T", "WATER"}},
}

// InferCategory maps a merchant category code to a category, falling back
// to keywords in the merchant name.
func InferCategory(mcc int, merchantName string) string {
	if mcc > 0 {
		for _, r := range mccRanges {
			if mcc >= r.lo && mcc <= r.hi {
				return r.category
			}
		}
	}

	upper := strings.ToUpper(merchantName) + " "
	for _, group := range nameKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(upper, kw) {
				return group.category
			}
		}
	}
	return CategoryOther
}
